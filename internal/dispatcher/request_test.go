package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyz-jphil/ccapis-proxy/internal/prompt"
)

func TestDecodeRequest_PlainStringContent(t *testing.T) {
	raw := []byte(`{"model":"claude-x","messages":[{"role":"user","content":"hi there"}]}`)
	req, messages, systemText, tools, err := decodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "claude-x", req.Model)
	assert.Equal(t, "", systemText)
	assert.Nil(t, tools)
	require.Len(t, messages, 1)
	assert.Equal(t, prompt.RoleUser, messages[0].Role)
	assert.Equal(t, "hi there", messages[0].Content)
}

func TestDecodeRequest_StructuredContentBlocks(t *testing.T) {
	raw := []byte(`{"messages":[{"role":"assistant","content":[{"type":"text","text":"hello"}]}]}`)
	_, messages, _, _, err := decodeRequest(raw)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, prompt.RoleAssistant, messages[0].Role)
	blocks, ok := messages[0].Content.([]prompt.ContentBlock)
	require.True(t, ok)
	assert.Equal(t, "hello", blocks[0].Text)
}

func TestDecodeRequest_SystemAsStringAndAsBlocks(t *testing.T) {
	raw := []byte(`{"system":"be nice","messages":[]}`)
	_, _, systemText, _, err := decodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "be nice", systemText)

	rawBlocks := []byte(`{"system":[{"type":"text","text":"be nice"}],"messages":[]}`)
	_, _, systemText2, _, err := decodeRequest(rawBlocks)
	require.NoError(t, err)
	assert.Contains(t, systemText2, "be nice")
}

func TestDecodeRequest_MalformedJSON(t *testing.T) {
	_, _, _, _, err := decodeRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeRequest_ToolsArrayDecoded(t *testing.T) {
	raw := []byte(`{"messages":[],"tools":[{"name":"search","description":"d","input_schema":{"properties":{"q":{"type":"string"}}}}]}`)
	_, _, _, tools, err := decodeRequest(raw)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
}

func TestDecodeContent_EmptyRawDefaultsToEmptyString(t *testing.T) {
	content, err := decodeContent(json.RawMessage(nil))
	require.NoError(t, err)
	assert.Equal(t, "", content)
}
