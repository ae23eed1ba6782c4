package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SingleToolUse(t *testing.T) {
	text := `I'll check the weather for you.
<tool_uses><tool_use name="get_weather"><parameter name="location">Paris</parameter><parameter name="offset">3</parameter></tool_use></tool_uses>`

	res := Extract(text, 1700000000000)
	require.Len(t, res.ToolUses, 1)

	tu := res.ToolUses[0]
	assert.Equal(t, "get_weather", tu.Name)
	assert.Equal(t, "toolu_1700000000000_0", tu.ID)
	assert.Equal(t, "Paris", tu.Input["location"])
	assert.Equal(t, 3, tu.Input["offset"])
	assert.Contains(t, res.TextBefore, "I'll check the weather for you.")
}

func TestExtract_NoToolUse_ReturnsPlainText(t *testing.T) {
	res := Extract("just a plain answer, nothing to do here", 1)
	assert.Empty(t, res.ToolUses)
	assert.Equal(t, "just a plain answer, nothing to do here", res.TextBefore)
}

func TestExtract_PreservesEmbeddedXMLVerbatim(t *testing.T) {
	text := `<tool_uses><tool_use name="configure"><parameter name="payload"><project><version>1.0</version></project></parameter></tool_use></tool_uses>`
	res := Extract(text, 1)
	require.Len(t, res.ToolUses, 1)
	assert.Equal(t, "<project><version>1.0</version></project>", res.ToolUses[0].Input["payload"])
}

func TestExtract_BareTopLevelToolUseWithoutContainer(t *testing.T) {
	text := `<tool_use name="ping"><parameter name="id">abc</parameter></tool_use>`
	res := Extract(text, 5)
	require.Len(t, res.ToolUses, 1)
	assert.Equal(t, "ping", res.ToolUses[0].Name)
	assert.Equal(t, "abc", res.ToolUses[0].Input["id"])
}

func TestExtract_MultipleToolUsesGetDistinctIDs(t *testing.T) {
	text := `<tool_uses>
<tool_use name="a"><parameter name="x">1</parameter></tool_use>
<tool_use name="b"><parameter name="y">2</parameter></tool_use>
</tool_uses>`
	res := Extract(text, 42)
	require.Len(t, res.ToolUses, 2)
	assert.Equal(t, "toolu_42_0", res.ToolUses[0].ID)
	assert.Equal(t, "toolu_42_1", res.ToolUses[1].ID)
}
