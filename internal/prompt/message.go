package prompt

import "encoding/json"

// Role is the speaker of one Message (spec §3).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the inbound conversation history. Content is
// either a plain string or a slice of ContentBlock — the translator never
// drops structured content, it serializes whatever it finds (spec §3,
// §4.4).
type Message struct {
	Role    Role
	Content interface{} // string or []ContentBlock
}

// ContentBlock is the tagged variant spec §9 collapses the original's deep
// content-block hierarchy into.
type ContentBlock struct {
	Type string `json:"type"`

	// Text block
	Text string `json:"text,omitempty"`

	// ToolUse block
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// ToolResult block
	ToolUseID string      `json:"tool_use_id,omitempty"`
	Content   interface{} `json:"content,omitempty"`

	// Image block
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is the nested shape of an Image content block.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TextOf renders a Message's content as the flat string that participates
// in the prompt. A plain string passes through unchanged; structured
// content blocks are serialized verbatim to their JSON representation
// (spec §4.4: "never filtered").
func TextOf(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []ContentBlock:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ToolDefinition is one entry of the inbound tools array (spec §3).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// InputSchema is the JSON-schema-shaped parameter description of a tool.
// PropertyOrder preserves the declaration order of Properties — required
// for C6's deterministic rendering, since a Go map has no stable iteration
// order of its own.
type InputSchema struct {
	Properties    map[string]PropertySchema
	PropertyOrder []string
	Required      []string
}

// PropertySchema describes one parameter.
type PropertySchema struct {
	Type        string
	Description string
	Enum        []string
}
