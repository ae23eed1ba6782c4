package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeToolDefinitions parses the inbound `tools` JSON array into
// ToolDefinition values, preserving each schema's property declaration
// order — required so RenderToolsText stays deterministic (spec §4.4)
// even though Go's map type has no iteration order of its own.
func DecodeToolDefinitions(raw json.RawMessage) ([]ToolDefinition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rawTools []json.RawMessage
	if err := json.Unmarshal(raw, &rawTools); err != nil {
		return nil, fmt.Errorf("decode tools array: %w", err)
	}

	defs := make([]ToolDefinition, 0, len(rawTools))
	for _, rt := range rawTools {
		var shallow struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"input_schema"`
		}
		if err := json.Unmarshal(rt, &shallow); err != nil {
			return nil, fmt.Errorf("decode tool: %w", err)
		}
		schema, err := decodeInputSchema(shallow.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", shallow.Name, err)
		}
		defs = append(defs, ToolDefinition{
			Name:        shallow.Name,
			Description: shallow.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

func decodeInputSchema(raw json.RawMessage) (InputSchema, error) {
	if len(raw) == 0 {
		return InputSchema{}, nil
	}
	var shallow struct {
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(raw, &shallow); err != nil {
		return InputSchema{}, err
	}

	schema := InputSchema{
		Properties: map[string]PropertySchema{},
		Required:   shallow.Required,
	}
	if len(shallow.Properties) == 0 {
		return schema, nil
	}

	order, err := objectKeyOrder(shallow.Properties)
	if err != nil {
		return InputSchema{}, err
	}
	schema.PropertyOrder = order

	var props map[string]struct {
		Type        string          `json:"type"`
		Description string          `json:"description"`
		Enum        []interface{}   `json:"enum"`
	}
	if err := json.Unmarshal(shallow.Properties, &props); err != nil {
		return InputSchema{}, err
	}
	for name, p := range props {
		enum := make([]string, 0, len(p.Enum))
		for _, e := range p.Enum {
			enum = append(enum, fmt.Sprintf("%v", e))
		}
		schema.Properties[name] = PropertySchema{
			Type:        p.Type,
			Description: p.Description,
			Enum:        enum,
		}
	}
	return schema, nil
}

// objectKeyOrder walks a JSON object's top-level keys in declaration
// order using the streaming tokenizer (encoding/json's map decoding would
// otherwise discard that order).
func objectKeyOrder(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var order []string
	depth := 0
	for dec.More() || depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		case string:
			if depth == 0 {
				order = append(order, t)
				// Skip the value token(s) belonging to this key.
				if err := skipValue(dec); err != nil {
					return nil, err
				}
			}
		}
		if depth == 0 && !dec.More() {
			break
		}
	}
	return order, nil
}

// skipValue consumes one complete JSON value from dec (used after reading
// an object key, to skip past its value without decoding it).
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar value, already consumed
	}
	if delim == '{' || delim == '[' {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
