package prompt

import (
	"sort"
	"strings"
)

// toolsHeader is the fixed preamble of spec §4.4, reproduced byte-for-byte.
const toolsHeader = `# Available Tools

IMPORTANT: You MUST use <tool_use> tags (Anthropic format). Do NOT use <invoke> or <use_tool> tags.

Use tools by outputting XML in EXACTLY this format:
<tool_uses><tool_use name="tool_name"><parameter name="param_name">value</parameter></tool_use></tool_uses>

CRITICAL: Use <tool_use name="..."> with the standard Anthropic format. The tag name MUST be 'tool_use'.
`

// RenderToolsText builds the Markdown/XML tools block of spec §4.4. It is
// a design-fixed contract: given the same tool list, it always produces
// the same bytes. Returns "" if tools is empty — the caller (the system
// preamble builder) treats that as absence, not as an empty section.
func RenderToolsText(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(toolsHeader)
	for _, t := range tools {
		b.WriteString("\n## Tool: ")
		b.WriteString(t.Name)
		b.WriteString("\n**Description:** ")
		b.WriteString(t.Description)
		b.WriteString("\n**Parameters:**\n")
		renderParameters(&b, t.InputSchema)
	}
	return b.String()
}

func renderParameters(b *strings.Builder, schema InputSchema) {
	if len(schema.Properties) == 0 {
		b.WriteString("(No parameters)\n")
		return
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	// Deterministic order: schema.PropertyOrder when present (filled from
	// the inbound tool JSON by DecodeToolDefinitions); otherwise required
	// properties in Required order, then the rest sorted by name.
	names := orderedPropertyNames(schema)

	for _, name := range names {
		prop := schema.Properties[name]
		b.WriteString("  - `")
		b.WriteString(name)
		b.WriteString("`")
		if required[name] {
			b.WriteString(" **(required)**")
		}
		if prop.Type != "" {
			b.WriteString(" - Type: `")
			b.WriteString(prop.Type)
			b.WriteString("`")
		}
		b.WriteString("\n")
		if prop.Description != "" {
			b.WriteString("    ")
			b.WriteString(prop.Description)
			b.WriteString("\n")
		}
		if len(prop.Enum) > 0 {
			b.WriteString("    Allowed values: ")
			for i, v := range prop.Enum {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString("`")
				b.WriteString(v)
				b.WriteString("`")
			}
			b.WriteString("\n")
		}
	}
}

// orderedPropertyNames returns property names in the order they were
// declared, using schema.PropertyOrder when present, falling back to
// Required-then-rest (rest sorted by name) for schemas built without an
// explicit order.
func orderedPropertyNames(schema InputSchema) []string {
	if len(schema.PropertyOrder) > 0 {
		return schema.PropertyOrder
	}
	seen := make(map[string]bool, len(schema.Properties))
	names := make([]string, 0, len(schema.Properties))
	for _, n := range schema.Required {
		if _, ok := schema.Properties[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	rest := make([]string, 0, len(schema.Properties))
	for n := range schema.Properties {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
