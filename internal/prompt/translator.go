package prompt

import (
	"fmt"
	"strings"
)

// Request is the subset of the inbound Messages-API request the
// translator needs (spec §4.4). Dispatcher owns the full request model;
// this is just its prompt-relevant projection.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Translation is the output of Translate: the literal prompt text plus
// the tag names chosen for the final assistant turn and the tool-schema
// text, both of which the dispatcher needs again downstream (conversation
// naming, diagnostics).
type Translation struct {
	Prompt          string
	FinalAssistant  string
	ToolsText       string
}

const (
	tagSystem      = "custom_system_prompt"
	tagFormatting  = "formatting_instructions"
	tagUser        = "user"
	tagAssistant   = "ai_assistant"
)

// Translate implements C5 (spec §4.4): deterministic construction of the
// single prompt string CCAPI's completion endpoint accepts, from the
// decoded Anthropic-dialect request.
func Translate(req Request) Translation {
	toolsText := RenderToolsText(req.Tools)
	systemText := joinSystem(req.System, toolsText)

	userCount, assistantCount := countRoles(req.Messages)

	strings := collectStrings(systemText, req.Messages)

	systemTag := chooseTag(tagSystem, strings)
	formattingTag := chooseTag(tagFormatting, strings)
	userTags := nonCollidingTagSequence(tagUser, strings, userCount)
	assistantTags := nonCollidingTagSequence(tagAssistant, strings, assistantCount+1)

	finalAssistant := assistantTags[len(assistantTags)-1]

	if userCount == 1 && assistantCount == 0 {
		return Translation{
			Prompt:         singleTurn(systemText, systemTag, req.Messages),
			FinalAssistant: finalAssistant,
			ToolsText:      toolsText,
		}
	}

	return Translation{
		Prompt:         multiTurn(systemText, systemTag, formattingTag, userTags, assistantTags, finalAssistant, req.Messages),
		FinalAssistant: finalAssistant,
		ToolsText:      toolsText,
	}
}

func joinSystem(raw, tools string) string {
	switch {
	case raw == "":
		return tools
	case tools == "":
		return raw
	default:
		return raw + "\n\n" + tools
	}
}

func countRoles(messages []Message) (userCount, assistantCount int) {
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			userCount++
		case RoleAssistant:
			assistantCount++
		}
	}
	return
}

// collectStrings gathers every content string that will appear in the
// final prompt, for collision detection (spec §4.4).
func collectStrings(systemText string, messages []Message) []string {
	out := make([]string, 0, len(messages)+1)
	if systemText != "" {
		out = append(out, systemText)
	}
	for _, m := range messages {
		out = append(out, TextOf(m.Content))
	}
	return out
}

// chooseTag implements the collision-free tag search of spec §4.4: try
// the base tag, then _1 through _999, picking the first candidate that
// does not appear (bare, opening, or closing form) in any collected
// string.
func chooseTag(base string, strs []string) string {
	for i := 0; i <= 999; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		if !collides(candidate, strs) {
			return candidate
		}
	}
	return base
}

func collides(tag string, strs []string) bool {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	for _, s := range strs {
		if strings.Contains(s, tag) || strings.Contains(s, open) || strings.Contains(s, closeTag) {
			return true
		}
	}
	return false
}

// nonCollidingTagSequence implements the per-role collision-free tag search
// of spec §4.4 for roles that repeat across a conversation: walk the
// candidate sequence base, base_1, base_2, …, skip any candidate that
// collides with the collected text, and return the first n survivors in
// order. The k-th same-role message gets the k-th survivor of that
// sequence — a colliding candidate is skipped outright and never reused as
// a suffix target, so a later message can't be stamped base_1_1.
func nonCollidingTagSequence(base string, strs []string, n int) []string {
	tags := make([]string, 0, n)
	for i := 0; len(tags) < n; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		if !collides(candidate, strs) {
			tags = append(tags, candidate)
		}
	}
	return tags
}

// singleTurn implements spec §4.4's single-turn body encoding: system
// block (if any) followed by the raw user text, no wrapping tags, no
// trailing trim.
func singleTurn(systemText, systemTag string, messages []Message) string {
	var b strings.Builder
	if systemText != "" {
		b.WriteString("<")
		b.WriteString(systemTag)
		b.WriteString(">")
		b.WriteString(systemText)
		b.WriteString("</")
		b.WriteString(systemTag)
		b.WriteString(">\n\n")
	}
	if len(messages) > 0 {
		b.WriteString(TextOf(messages[0].Content))
	}
	return b.String()
}

// multiTurn implements spec §4.4's multi-turn body encoding: system block,
// formatting-instructions block, then each message wrapped in its role
// tag, right-trimmed once at the end. userTags and assistantTags are the
// per-role collision-free tag sequences; the k-th same-role message uses
// the k-th entry.
func multiTurn(systemText, systemTag, formattingTag string, userTags, assistantTags []string, finalAssistant string, messages []Message) string {
	var b strings.Builder

	if systemText != "" {
		b.WriteString("<")
		b.WriteString(systemTag)
		b.WriteString(">")
		b.WriteString(systemText)
		b.WriteString("</")
		b.WriteString(systemTag)
		b.WriteString(">\n\n")
	}

	b.WriteString("<")
	b.WriteString(formattingTag)
	b.WriteString(">")
	b.WriteString(formattingInstructions(finalAssistant))
	b.WriteString("</")
	b.WriteString(formattingTag)
	b.WriteString(">\n\n")

	userIdx := 0
	assistantIdx := 0
	for _, m := range messages {
		var tag string
		switch m.Role {
		case RoleUser:
			tag = userTags[userIdx]
			userIdx++
		case RoleAssistant:
			tag = assistantTags[assistantIdx]
			assistantIdx++
		default:
			continue
		}
		b.WriteString("<")
		b.WriteString(tag)
		b.WriteString(">")
		b.WriteString(TextOf(m.Content))
		b.WriteString("</")
		b.WriteString(tag)
		b.WriteString(">\n\n")
	}

	return strings.TrimRight(b.String(), " \t\n\r")
}

func formattingInstructions(finalAssistant string) string {
	return "This conversation uses XML-style tags for message boundaries.\n" +
		"You are fulfilling the role of `" + finalAssistant + "`.\n" +
		"Respond with ONLY your answer as plain text.\n" +
		"Do NOT include XML tags in your response."
}
