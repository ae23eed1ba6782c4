// Package toolcall implements C8, the tool-call extractor (spec §4.6):
// parsing the free-form XML an assistant turn embeds in its response text
// into structured tool invocations. Grounded on the teacher pack's only
// golang.org/x/net/html consumer,
// sebastianbartmann-notes_editor/server/internal/claude/tools.go's
// extractTextFromHTML (recursive html.Node walk over an html.Parse tree) —
// adapted from "strip markup, keep text" into "find <tool_use> elements
// and preserve their parameter content verbatim".
package toolcall

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ToolUse is one parsed invocation.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Warning is a diagnostic emitted for KNOWN_STRING or UNKNOWN numeric-shaped
// parameter values (spec §4.6) — never affects extraction, only surfaced
// for logging.
type Warning struct {
	ToolName  string
	ParamName string
	Message   string
}

// Result is the output of Extract.
type Result struct {
	TextBefore string
	ToolUses   []ToolUse
	Warnings   []Warning
}

// Extract parses the concatenated assistant text for <tool_uses>/<tool_use>
// elements (spec §4.6). idBase is a monotonic millisecond timestamp used to
// build each tool_use's id.
func Extract(text string, idBase int64) Result {
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return Result{TextBefore: strings.TrimSpace(text)}
	}

	body := findBody(root)
	if body == nil {
		return Result{TextBefore: strings.TrimSpace(text)}
	}

	container := findFirst(body, "tool_uses")
	var toolNodes []*html.Node
	if container != nil {
		toolNodes = findAllDirect(container, "tool_use")
	} else {
		toolNodes = findAllAnyDepth(body, "tool_use")
	}

	if len(toolNodes) == 0 {
		return Result{TextBefore: strings.TrimSpace(renderText(body))}
	}

	anchor := container
	if anchor == nil {
		anchor = toolNodes[0]
	}
	textBefore := strings.TrimSpace(textBeforeNode(body, anchor))

	res := Result{TextBefore: textBefore}
	for i, node := range toolNodes {
		name := attr(node, "name")
		id := toolUseID(idBase, i)
		input, warnings := parseParameters(name, node)
		res.ToolUses = append(res.ToolUses, ToolUse{ID: id, Name: name, Input: input})
		res.Warnings = append(res.Warnings, warnings...)
	}
	return res
}

func toolUseID(idBase int64, index int) string {
	return "toolu_" + strconv.FormatInt(idBase, 10) + "_" + strconv.Itoa(index)
}

func parseParameters(toolName string, toolUseNode *html.Node) (map[string]interface{}, []Warning) {
	input := map[string]interface{}{}
	var warnings []Warning
	for _, p := range findAllDirect(toolUseNode, "parameter") {
		name := attr(p, "name")
		raw := renderInner(p)
		value, warn := coerce(toolName, name, raw)
		input[name] = value
		if warn != "" {
			warnings = append(warnings, Warning{ToolName: toolName, ParamName: name, Message: warn})
		}
	}
	return input, warnings
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findBody(root *html.Node) *html.Node {
	return findFirst(root, "body")
}

// findFirst does a depth-first search for the first element with the given
// tag name, anywhere in the tree rooted at n.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAllDirect returns direct element children of n with the given tag.
func findAllDirect(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

// findAllAnyDepth returns every element with the given tag, anywhere under
// n, in document order (used for the bare top-level <tool_use> fallback).
func findAllAnyDepth(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// renderText concatenates every text node under n, depth-first.
func renderText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "tool_uses" || n.Data == "tool_use") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// textBeforeNode concatenates text appearing in document order before
// anchor, stopping the walk once anchor is reached.
func textBeforeNode(root, anchor *html.Node) string {
	var b strings.Builder
	stopped := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if stopped {
			return
		}
		if n == anchor {
			stopped = true
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil && !stopped; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

// renderInner serializes a parameter element's children exactly as they
// appeared (spec §4.6 point 3: "including embedded XML tags, entities as
// parsed, and all whitespace"), using html.Render per child so nested tags
// round-trip faithfully.
func renderInner(n *html.Node) string {
	var b bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			continue
		}
		_ = html.Render(&b, c)
	}
	return b.String()
}
