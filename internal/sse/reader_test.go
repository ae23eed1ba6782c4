package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_DeltasThenStop(t *testing.T) {
	body := `data: {"completion":"Hello"}

data: {"completion":" world"}

data: {"completion":"","stop_reason":"end_turn"}

`
	r := NewReader(strings.NewReader(body))

	ev1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventDelta, ev1.Kind)
	assert.Equal(t, "Hello", ev1.Text)

	ev2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventDelta, ev2.Kind)
	assert.Equal(t, " world", ev2.Text)

	ev3, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventStop, ev3.Kind)
	assert.Equal(t, "end_turn", ev3.StopReason)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_SkipsPingComments(t *testing.T) {
	body := ": ping

data: {"completion":"hi"}

`
	r := NewReader(strings.NewReader(body))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", ev.Text)
}

func TestReader_DoneSentinel(t *testing.T) {
	r := NewReader(strings.NewReader("data: [DONE]\n\n"))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventStop, ev.Kind)
	assert.Equal(t, "end_turn", ev.StopReason)
}

func TestReader_ErrorEvent(t *testing.T) {
	body := `data: {"error":{"message":"quota exceeded_limit","type":"rate_limit_error"}}

`
	r := NewReader(strings.NewReader(body))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EventError, ev.Kind)
	assert.Equal(t, "quota exceeded_limit", ev.Message)
}

func TestReadAll_ConcatenatesDeltasAndReturnsStopReason(t *testing.T) {
	body := `data: {"completion":"foo"}

data: {"completion":"bar"}

data: {"completion":"","stop_reason":"max_tokens"}

`
	text, stopReason, err := ReadAll(NewReader(strings.NewReader(body)))
	require.NoError(t, err)
	assert.Equal(t, "foobar", text)
	assert.Equal(t, "max_tokens", stopReason)
}

func TestReadAll_StreamEndsWithoutExplicitStop(t *testing.T) {
	body := `data: {"completion":"only chunk"}

`
	text, stopReason, err := ReadAll(NewReader(strings.NewReader(body)))
	require.NoError(t, err)
	assert.Equal(t, "only chunk", text)
	assert.Equal(t, "end_turn", stopReason)
}

func TestReadAll_MidStreamErrorSurfaces(t *testing.T) {
	body := `data: {"error":{"message":"boom"}}

`
	_, _, err := ReadAll(NewReader(strings.NewReader(body)))
	require.Error(t, err)
	assert.Equal(t, "upstream stream error: boom", err.Error())
}
