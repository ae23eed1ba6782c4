package emitter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyz-jphil/ccapis-proxy/internal/toolcall"
)

func TestEstimateTokens_MinimumOne(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 2, EstimateTokens("12345678"))
}

func TestStopReason(t *testing.T) {
	assert.Equal(t, "end_turn", StopReason(nil))
	assert.Equal(t, "tool_use", StopReason([]toolcall.ToolUse{{Name: "x"}}))
}

func TestBuildMessage_TextOnly(t *testing.T) {
	msg := BuildMessage("msg_1", "model-x", "", nil, "hello world", 10)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "text", msg.Content[0].Type)
	assert.Equal(t, "hello world", msg.Content[0].Text)
	assert.Equal(t, "end_turn", msg.StopReason)
	assert.Equal(t, 10, msg.Usage.InputTokens)
}

func TestBuildMessage_ToolUseUsesTextBeforeNotFullText(t *testing.T) {
	tus := []toolcall.ToolUse{{ID: "toolu_1", Name: "search", Input: map[string]interface{}{"q": "go"}}}
	msg := BuildMessage("msg_1", "model-x", "before the call", tus, "before the call<tool_uses>...</tool_uses>", 10)

	require.Len(t, msg.Content, 2)
	assert.Equal(t, "before the call", msg.Content[0].Text)
	assert.Equal(t, "tool_use", msg.Content[1].Type)
	assert.Equal(t, "toolu_1", msg.Content[1].ID)
	assert.Equal(t, "tool_use", msg.StopReason)
}

func TestBuildMessage_EmptyTextBeforeOmitsTextBlock(t *testing.T) {
	tus := []toolcall.ToolUse{{ID: "toolu_1", Name: "search"}}
	msg := BuildMessage("msg_1", "model-x", "", tus, "<tool_uses>...</tool_uses>", 10)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "tool_use", msg.Content[0].Type)
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "msg_1700000000000", MessageID(1700000000000))
}

func TestStreamWriter_EmitsSevenFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, func() error { return nil })

	require.NoError(t, sw.MessageStart("msg_1", "model-x"))
	require.NoError(t, sw.TextBlockStart())
	require.NoError(t, sw.TextDelta("hi"))
	require.NoError(t, sw.BlockStop(0))
	require.NoError(t, sw.ToolUseBlockStart(1, toolcall.ToolUse{ID: "toolu_1", Name: "t"}))
	require.NoError(t, sw.BlockStop(1))
	require.NoError(t, sw.MessageDelta("tool_use", Usage{InputTokens: 1, OutputTokens: 2}))
	require.NoError(t, sw.MessageStop())

	out := buf.String()
	for _, event := range []string{
		"event: message_start",
		"event: content_block_start",
		"event: content_block_delta",
		"event: content_block_stop",
		"event: message_delta",
		"event: message_stop",
	} {
		assert.Contains(t, out, event)
	}
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestStreamWriter_ErrorFrame(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf, func() error { return nil })
	require.NoError(t, sw.Error("upstream broke"))
	assert.Contains(t, buf.String(), "upstream broke")
	assert.Contains(t, buf.String(), "event: error")
}
