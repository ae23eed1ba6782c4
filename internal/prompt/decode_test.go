package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeToolDefinitions_PreservesPropertyOrder(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "search",
			"description": "Searches the web",
			"input_schema": {
				"properties": {
					"zeta": {"type": "string"},
					"alpha": {"type": "number"},
					"mid": {"type": "string", "enum": ["a", "b"]}
				},
				"required": ["alpha"]
			}
		}
	]`)

	defs, err := DecodeToolDefinitions(raw)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	schema := defs[0].InputSchema
	require.Equal(t, []string{"zeta", "alpha", "mid"}, schema.PropertyOrder)
	require.Equal(t, []string{"alpha"}, schema.Required)
	require.Equal(t, "number", schema.Properties["alpha"].Type)
	require.Equal(t, []string{"a", "b"}, schema.Properties["mid"].Enum)
}

func TestDecodeToolDefinitions_EmptyInput(t *testing.T) {
	defs, err := DecodeToolDefinitions(nil)
	require.NoError(t, err)
	require.Nil(t, defs)
}

func TestDecodeToolDefinitions_MalformedJSON(t *testing.T) {
	_, err := DecodeToolDefinitions(json.RawMessage(`not json`))
	require.Error(t, err)
}

func TestObjectKeyOrder_NestedValuesDoNotLeakIntoOrder(t *testing.T) {
	raw := json.RawMessage(`{"first": {"nested": 1, "deep": {"x": 2}}, "second": [1,2,3]}`)
	order, err := objectKeyOrder(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, order)
}
