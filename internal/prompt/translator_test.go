package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_SingleTurnNoWrappingTags(t *testing.T) {
	req := Request{
		System:   "You are helpful.",
		Messages: []Message{{Role: RoleUser, Content: "hello there"}},
	}
	tr := Translate(req)

	assert.Contains(t, tr.Prompt, "<custom_system_prompt>You are helpful.</custom_system_prompt>")
	assert.True(t, strings.HasSuffix(tr.Prompt, "hello there"), "single turn must not trim or wrap the user text")
	assert.NotContains(t, tr.Prompt, "<user>")
}

func TestTranslate_MultiTurnWrapsEachMessage(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "second"},
			{Role: RoleUser, Content: "third"},
		},
	}
	tr := Translate(req)

	assert.Contains(t, tr.Prompt, "<user>first</user>")
	assert.Contains(t, tr.Prompt, "<ai_assistant>second</ai_assistant>")
	assert.Contains(t, tr.Prompt, "<user_1>third</user_1>")
	assert.False(t, strings.HasSuffix(tr.Prompt, "\n\n"), "multi-turn output is right-trimmed once")
}

func TestTranslate_MultiTurnFormattingReferencesFinalAssistantTag(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: RoleUser, Content: "only one turn but forced multi by an assistant reply"},
			{Role: RoleAssistant, Content: "ack"},
		},
	}
	tr := Translate(req)
	require.Equal(t, "ai_assistant_1", tr.FinalAssistant)
	assert.Contains(t, tr.Prompt, "fulfilling the role of `ai_assistant_1`")
}

func TestTranslate_CollisionAvoidance(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: RoleUser, Content: "please don't confuse me with <user> tags"},
			{Role: RoleAssistant, Content: "ok"},
		},
	}
	tr := Translate(req)

	// The literal "<user>" appears in the first message, so the chosen user
	// tag must be user_1, and it must wrap that very message.
	assert.Contains(t, tr.Prompt, "<user_1>please don't confuse me with <user> tags</user_1>")
	assert.NotContains(t, tr.Prompt, "<user>please don't confuse me")
}

func TestTranslate_CollisionAvoidance_SecondSameRoleMessageGetsNextSurvivor(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: RoleUser, Content: "before <user>"},
			{Role: RoleAssistant, Content: "ok"},
			{Role: RoleUser, Content: "after"},
		},
	}
	tr := Translate(req)

	// "user" collides with the first message, so it is skipped outright;
	// the two user messages get the next two survivors in order, not
	// user_1 followed by a re-suffixed user_1_1.
	assert.Contains(t, tr.Prompt, "<user_1>before <user></user_1>")
	assert.Contains(t, tr.Prompt, "<user_2>after</user_2>")
	assert.NotContains(t, tr.Prompt, "user_1_1")
}

func TestChooseTag_FallsBackThroughNumberedSuffixes(t *testing.T) {
	strs := []string{"text containing custom_system_prompt and custom_system_prompt_1"}
	got := chooseTag(tagSystem, strs)
	assert.Equal(t, "custom_system_prompt_2", got)
}

func TestJoinSystem(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		tools string
		want  string
	}{
		{"both empty", "", "", ""},
		{"only raw", "sys", "", "sys"},
		{"only tools", "", "tools", "tools"},
		{"both", "sys", "tools", "sys\n\ntools"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, joinSystem(c.raw, c.tools))
		})
	}
}
