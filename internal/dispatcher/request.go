package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/xyz-jphil/ccapis-proxy/internal/prompt"
)

// inboundRequest is the wire shape of spec §6's POST /v1/messages body.
type inboundRequest struct {
	Model       string            `json:"model"`
	Messages    []inboundMessage  `json:"messages"`
	System      json.RawMessage   `json:"system"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
	Tools       json.RawMessage   `json:"tools"`
	ToolChoice  json.RawMessage   `json:"tool_choice"`
}

type inboundMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// decodeRequest parses the raw JSON body into the translator's input
// shape. Structured content and system blocks are never dropped (spec
// §3): a content array decodes into []prompt.ContentBlock, a plain string
// passes through unchanged.
func decodeRequest(raw []byte) (inboundRequest, []prompt.Message, string, []prompt.ToolDefinition, error) {
	var req inboundRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return inboundRequest{}, nil, "", nil, fmt.Errorf("decode request: %w", err)
	}

	messages := make([]prompt.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		content, err := decodeContent(m.Content)
		if err != nil {
			return inboundRequest{}, nil, "", nil, fmt.Errorf("decode message content: %w", err)
		}
		role := prompt.RoleUser
		if m.Role == string(prompt.RoleAssistant) {
			role = prompt.RoleAssistant
		}
		messages = append(messages, prompt.Message{Role: role, Content: content})
	}

	systemText, err := decodeSystem(req.System)
	if err != nil {
		return inboundRequest{}, nil, "", nil, fmt.Errorf("decode system: %w", err)
	}

	tools, err := prompt.DecodeToolDefinitions(req.Tools)
	if err != nil {
		return inboundRequest{}, nil, "", nil, fmt.Errorf("decode tools: %w", err)
	}

	return req, messages, systemText, tools, nil
}

// decodeContent accepts either a plain string or an array of content
// blocks, per spec §3.
func decodeContent(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []prompt.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// decodeSystem accepts either a plain string or an array of content
// blocks (some clients send system as structured blocks); either way it
// collapses to the raw text the translator wants as system_text's first
// operand.
func decodeSystem(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var blocks []prompt.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", err
	}
	return prompt.TextOf(blocks), nil
}
