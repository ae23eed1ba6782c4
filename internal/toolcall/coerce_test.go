package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerce_Booleans(t *testing.T) {
	v, warn := coerce("t", "flag", "TRUE")
	assert.Equal(t, true, v)
	assert.Empty(t, warn)

	v, warn = coerce("t", "flag", "false")
	assert.Equal(t, false, v)
	assert.Empty(t, warn)
}

func TestCoerce_NonNumericShapeStaysString(t *testing.T) {
	v, warn := coerce("t", "name", "Paris")
	assert.Equal(t, "Paris", v)
	assert.Empty(t, warn)
}

func TestCoerce_KnownNumericParses(t *testing.T) {
	v, warn := coerce("t", "offset", "42")
	assert.Equal(t, 42, v)
	assert.Empty(t, warn)

	v, warn = coerce("t", "limit", "3.5")
	assert.Equal(t, 3.5, v)
	assert.Empty(t, warn)
}

func TestCoerce_KnownStringPinnedDespiteNumericShape(t *testing.T) {
	v, warn := coerce("my_tool", "id", "12345")
	assert.Equal(t, "12345", v, "id is pinned KNOWN_STRING even though it looks numeric")
	assert.Contains(t, warn, "my_tool")
	assert.Contains(t, warn, "pinned as string")
}

func TestCoerce_UnknownNumericShapeParsesWithWarning(t *testing.T) {
	v, warn := coerce("my_tool", "mystery_param", "99")
	assert.Equal(t, 99, v)
	assert.Contains(t, warn, "no known type")
}

func TestParseNumber_IntVsInt64VsFloat(t *testing.T) {
	assert.IsType(t, int(0), parseNumber("100"))
	assert.IsType(t, int64(0), parseNumber("99999999999"))
	assert.IsType(t, float64(0), parseNumber("1.5"))
}
