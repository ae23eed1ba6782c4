// Package emitter implements C9, translating the extracted assistant text
// and tool uses back into the Anthropic Messages API's response shapes —
// either one JSON object or the seven-frame SSE sequence of spec §4.7.
package emitter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xyz-jphil/ccapis-proxy/internal/toolcall"
)

// Usage is the best-effort token accounting spec §4.7 pins as a stable
// contract (`max(1, len/4)`), not a placeholder awaiting a real counter.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EstimateTokens implements the pinned estimate.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n < 1 {
		return 1
	}
	return n
}

// Message is the non-streaming response body (spec §4.7).
type Message struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock is one emitted content block: a text block or a tool_use
// block, distinguished by Type.
type ContentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// StopReason implements spec §4.7's shared rule: tool_use iff any tool
// uses were extracted, else end_turn.
func StopReason(toolUses []toolcall.ToolUse) string {
	if len(toolUses) > 0 {
		return "tool_use"
	}
	return "end_turn"
}

// BuildMessage constructs the non-streaming response object.
func BuildMessage(id, model, textBefore string, toolUses []toolcall.ToolUse, fullText string, inputTokens int) Message {
	stopReason := StopReason(toolUses)

	blocks := make([]ContentBlock, 0, 1+len(toolUses))
	text := fullText
	if stopReason == "tool_use" {
		text = textBefore
	}
	if text != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: text})
	}
	for _, tu := range toolUses {
		blocks = append(blocks, ContentBlock{Type: "tool_use", ID: tu.ID, Name: tu.Name, Input: tu.Input})
	}

	return Message{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    blocks,
		StopReason: stopReason,
		Usage:      Usage{InputTokens: inputTokens, OutputTokens: EstimateTokens(fullText)},
	}
}

// MessageID builds the "msg_" + ms id spec §4.7 prescribes.
func MessageID(nowMS int64) string {
	return "msg_" + strconv.FormatInt(nowMS, 10)
}

// StreamWriter emits the seven-frame SSE sequence of spec §4.7 onto w,
// flushing after every frame (flush may be a no-op if the transport
// doesn't buffer).
type StreamWriter struct {
	w     *bufio.Writer
	flush func() error
}

// NewStreamWriter wraps w. flush is called after each frame; pass a no-op
// if the underlying writer has no separate flush step.
func NewStreamWriter(w io.Writer, flush func() error) *StreamWriter {
	return &StreamWriter{w: bufio.NewWriter(w), flush: flush}
}

func (s *StreamWriter) frame(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.flush()
}

// MessageStart is frame 1.
func (s *StreamWriter) MessageStart(id, model string) error {
	return s.frame("message_start", map[string]interface{}{
		"type": "message_start",
		"message": map[string]interface{}{
			"id":      id,
			"type":    "message",
			"role":    "assistant",
			"model":   model,
			"content": []interface{}{},
		},
	})
}

// TextBlockStart is frame 2.
func (s *StreamWriter) TextBlockStart() error {
	return s.frame("content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         0,
		"content_block": map[string]interface{}{"type": "text", "text": ""},
	})
}

// TextDelta is one of frame 3's deltas.
func (s *StreamWriter) TextDelta(chunk string) error {
	return s.frame("content_block_delta", map[string]interface{}{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]interface{}{"type": "text_delta", "text": chunk},
	})
}

// BlockStop is frame 4 (and the stop half of each tool_use pair in frame 5).
func (s *StreamWriter) BlockStop(index int) error {
	return s.frame("content_block_stop", map[string]interface{}{
		"type":  "content_block_stop",
		"index": index,
	})
}

// ToolUseBlockStart is the start half of one frame-5 pair.
func (s *StreamWriter) ToolUseBlockStart(index int, tu toolcall.ToolUse) error {
	return s.frame("content_block_start", map[string]interface{}{
		"type":  "content_block_start",
		"index": index,
		"content_block": map[string]interface{}{
			"type":  "tool_use",
			"id":    tu.ID,
			"name":  tu.Name,
			"input": tu.Input,
		},
	})
}

// MessageDelta is frame 6.
func (s *StreamWriter) MessageDelta(stopReason string, usage Usage) error {
	return s.frame("message_delta", map[string]interface{}{
		"type":  "message_delta",
		"delta": map[string]interface{}{"stop_reason": stopReason},
		"usage": usage,
	})
}

// MessageStop is frame 7.
func (s *StreamWriter) MessageStop() error {
	return s.frame("message_stop", map[string]interface{}{"type": "message_stop"})
}

// Error emits a mid-stream error event (spec §4.7: "on mid-stream error,
// emit a final error event and flush").
func (s *StreamWriter) Error(message string) error {
	return s.frame("error", map[string]interface{}{
		"type":  "error",
		"error": map[string]interface{}{"type": "api_error", "message": message},
	})
}

// NowMS is the millisecond epoch timestamp used for message/tool ids.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
