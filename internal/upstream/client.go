// Package upstream implements the stateless HTTP operations against CCAPI
// (spec §4.1, §6). Grounded on the teacher's callClaudeWithMessages /
// StreamClaudeWithMessages request-building shape in
// internal/llm_handlers/anthropic.go (marshal body, http.NewRequestWithContext,
// header set, status-code branch) with the Vertex OAuth2 bearer swapped for
// this spec's plain session-cookie bearer, and per-credential outbound
// pacing (golang.org/x/time/rate) added — the teacher has no equivalent
// because it talks to one fixed Vertex endpoint per process, not a pool of
// independent credentials sharing call-site code.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/xyz-jphil/ccapis-proxy/internal/apperror"
	"github.com/xyz-jphil/ccapis-proxy/internal/credential"
	"github.com/xyz-jphil/ccapis-proxy/internal/health"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ConvMeta is one entry of list_conversations.
type ConvMeta struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ConvHandle is the upstream-assigned conversation id (spec §3).
type ConvHandle struct {
	UUID string `json:"uuid"`
}

// Client performs the five CCAPI operations of spec §4.1. It never retries
// — that policy belongs to the dispatcher (spec §4.1, §7).
type Client struct {
	httpClient *http.Client
	limiters   *limiterSet
}

// New builds a Client. Its http.Client sets no timeout of its own: every
// call, buffered or streaming, is bounded only by the context the caller
// passes in.
func New() *Client {
	return &Client{
		httpClient: &http.Client{},
		limiters:   newLimiterSet(),
	}
}

// limiterSet hands out a per-credential rate.Limiter so one busy credential
// never starves another's pacing budget.
type limiterSet struct {
	get func(id string) *rate.Limiter
}

func newLimiterSet() *limiterSet {
	limiters := make(map[string]*rate.Limiter)
	return &limiterSet{
		get: func(id string) *rate.Limiter {
			l, ok := limiters[id]
			if !ok {
				// Courtesy pacing only: a generous ceiling so a single
				// credential's legitimate burst (e.g. concurrent
				// requests during a fleet task) isn't throttled by us —
				// upstream's own quota is authoritative.
				l = rate.NewLimiter(rate.Limit(5), 10)
				limiters[id] = l
			}
			return l
		},
	}
}

func (c *Client) wait(ctx context.Context, cred credential.Credential) error {
	return c.limiters.get(cred.ID).Wait(ctx)
}

func orgPath(cred credential.Credential, suffix string) string {
	return fmt.Sprintf("%s/api/organizations/%s%s", cred.BaseURL, cred.OrgID, suffix)
}

func (c *Client) newRequest(ctx context.Context, method, url string, cred credential.Credential, body io.Reader, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Cookie", "sessionKey="+cred.SessionSecret)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", cred.BaseURL)
	req.Header.Set("Referer", cred.BaseURL)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// classify turns a non-2xx response into a typed apperror.Error (spec
// §4.1: "non-2xx yields a typed error carrying the status code and body
// prefix").
func classify(status int, body []byte) *apperror.Error {
	prefix := string(body)
	if len(prefix) > 512 {
		prefix = prefix[:512]
	}
	kind := apperror.ClassifyBody(status, prefix)
	return apperror.New(kind, status, prefix, fmt.Errorf("upstream returned status %d", status))
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, resp.StatusCode, "", fmt.Errorf("read body: %w", err))
	}
	return b, nil
}

// FetchUsage retrieves the per-window quota snapshot for a credential.
func (c *Client) FetchUsage(ctx context.Context, cred credential.Credential) (*health.Usage, error) {
	if err := c.wait(ctx, cred); err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	req, err := c.newRequest(ctx, http.MethodGet, orgPath(cred, "/usage"), cred, nil, "*/*")
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("fetch_usage: %w", err))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, classify(resp.StatusCode, body)
	}

	var raw map[string]struct {
		Utilization float64   `json:"utilization"`
		ResetsAt    time.Time `json:"resets_at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.New(apperror.KindGeneric, resp.StatusCode, "", fmt.Errorf("decode usage: %w", err))
	}

	windows := make(map[string]health.Window, len(raw))
	for name, w := range raw {
		windows[name] = health.Window{UtilizationPct: w.Utilization, ResetsAt: w.ResetsAt}
	}
	return &health.Usage{Windows: windows, FetchedAt: time.Now().UTC()}, nil
}

// ListConversations lists the conversations visible to a credential.
func (c *Client) ListConversations(ctx context.Context, cred credential.Credential) ([]ConvMeta, error) {
	if err := c.wait(ctx, cred); err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	req, err := c.newRequest(ctx, http.MethodGet, orgPath(cred, "/chat_conversations"), cred, nil, "*/*")
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("list_conversations: %w", err))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, classify(resp.StatusCode, body)
	}
	var out []ConvMeta
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.New(apperror.KindGeneric, resp.StatusCode, "", fmt.Errorf("decode conversations: %w", err))
	}
	return out, nil
}

// CreateConversation creates a new conversation and returns its handle
// (spec §4.1, §6).
func (c *Client) CreateConversation(ctx context.Context, cred credential.Credential, name string, isTemporary bool) (ConvHandle, error) {
	if err := c.wait(ctx, cred); err != nil {
		return ConvHandle{}, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	payload, err := json.Marshal(map[string]interface{}{
		"uuid":                          uuid.NewString(),
		"name":                          name,
		"is_temporary":                  isTemporary,
		"include_conversation_preferences": true,
	})
	if err != nil {
		return ConvHandle{}, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("marshal create body: %w", err))
	}
	req, err := c.newRequest(ctx, http.MethodPost, orgPath(cred, "/chat_conversations"), cred, bytes.NewReader(payload), "*/*")
	if err != nil {
		return ConvHandle{}, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConvHandle{}, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("create_conversation: %w", err))
	}
	body, err := readBody(resp)
	if err != nil {
		return ConvHandle{}, err
	}
	if resp.StatusCode/100 != 2 {
		return ConvHandle{}, classify(resp.StatusCode, body)
	}
	var handle ConvHandle
	if err := json.Unmarshal(body, &handle); err != nil {
		return ConvHandle{}, apperror.New(apperror.KindGeneric, resp.StatusCode, "", fmt.Errorf("decode conversation: %w", err))
	}
	return handle, nil
}

func completionBody(prompt string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"prompt":   prompt,
		"timezone": "UTC",
	})
}

// SendCompletionBuffered performs a non-streaming completion call and
// returns the raw SSE bytes for the caller to decode (spec §4.1).
func (c *Client) SendCompletionBuffered(ctx context.Context, cred credential.Credential, conv ConvHandle, prompt string) ([]byte, error) {
	if err := c.wait(ctx, cred); err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	payload, err := completionBody(prompt)
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("marshal completion body: %w", err))
	}
	url := orgPath(cred, fmt.Sprintf("/chat_conversations/%s/completion", conv.UUID))
	req, err := c.newRequest(ctx, http.MethodPost, url, cred, bytes.NewReader(payload), "text/event-stream")
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("send_completion_buffered: %w", err))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, classify(resp.StatusCode, body)
	}
	return body, nil
}

// SendCompletionStreaming performs a streaming completion call. consume
// is given the live response body to decode incrementally (the SSE
// decoding itself lives in package sse — this client only owns the HTTP
// round trip and never buffers the whole stream in memory).
func (c *Client) SendCompletionStreaming(ctx context.Context, cred credential.Credential, conv ConvHandle, prompt string, consume func(io.Reader) error) error {
	if err := c.wait(ctx, cred); err != nil {
		return apperror.New(apperror.KindGeneric, 0, "", err)
	}
	payload, err := completionBody(prompt)
	if err != nil {
		return apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("marshal completion body: %w", err))
	}
	url := orgPath(cred, fmt.Sprintf("/chat_conversations/%s/completion", conv.UUID))
	req, err := c.newRequest(ctx, http.MethodPost, url, cred, bytes.NewReader(payload), "text/event-stream")
	if err != nil {
		return apperror.New(apperror.KindGeneric, 0, "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.New(apperror.KindGeneric, 0, "", fmt.Errorf("send_completion_streaming: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return classify(resp.StatusCode, body)
	}
	return consume(resp.Body)
}
