// Package sse implements C7, the upstream SSE decoder (spec §4.5).
// Grounded on the teacher's pack in
// digitallysavvy-go-ai/pkg/providerutils/streaming/sse.go (bufio.Scanner
// line loop, colon-split field parsing, comment-line skip) adapted from a
// general-purpose SSE parser into CCAPI's narrower shape: data lines carry
// a JSON object with a `completion` field and sometimes a `stop_reason`,
// and the only comment line CCAPI sends is `: ping`.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// EventKind distinguishes the semantic events the reader produces.
type EventKind int

const (
	EventDelta EventKind = iota
	EventStop
	EventError
)

// Event is one semantic unit produced by Reader.Next.
type Event struct {
	Kind       EventKind
	Text       string // EventDelta
	StopReason string // EventStop
	Message    string // EventError
}

// frame is the JSON shape of one `data:` line CCAPI emits.
type frame struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Reader decodes a byte stream of `data: <json>` lines terminated by blank
// lines, plus `ping` comment lines, into semantic events (spec §4.5). It
// holds its own line buffer so it tolerates partial reads from the
// underlying transport.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for incremental decoding.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: s}
}

// Next returns the next semantic event, or io.EOF when the stream ends
// cleanly. Unknown event/data shapes are skipped, not surfaced as errors
// (spec §4.5: "unknown events are ignored").
func (r *Reader) Next() (Event, error) {
	for {
		var dataLines []string
		sawLine := false
		for r.scanner.Scan() {
			line := r.scanner.Text()
			sawLine = true

			if line == "" {
				break
			}
			if strings.HasPrefix(line, ":") {
				continue // comment line, e.g. ": ping"
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			dataLines = append(dataLines, value)
		}

		if err := r.scanner.Err(); err != nil {
			return Event{}, err
		}

		if len(dataLines) == 0 {
			if !sawLine {
				return Event{}, io.EOF
			}
			continue
		}

		data := strings.Join(dataLines, "\n")
		if data == "[DONE]" {
			return Event{Kind: EventStop, StopReason: "end_turn"}, nil
		}

		var f frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			continue // malformed frame, skip per the ignore-unknown rule
		}
		switch {
		case f.Error != nil:
			return Event{Kind: EventError, Message: f.Error.Message}, nil
		case f.StopReason != "":
			return Event{Kind: EventStop, StopReason: f.StopReason}, nil
		case f.Completion != "":
			return Event{Kind: EventDelta, Text: f.Completion}, nil
		default:
			continue
		}
	}
}

// ReadAll drains the reader, concatenating delta text, and returns the
// final stop reason (or "end_turn" if the stream ended without one). Used
// by the non-streaming dispatch path (spec §4.8 step 5).
func ReadAll(r *Reader) (text string, stopReason string, err error) {
	stopReason = "end_turn"
	var b strings.Builder
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return b.String(), stopReason, nil
		}
		if err != nil {
			return b.String(), stopReason, err
		}
		switch ev.Kind {
		case EventDelta:
			b.WriteString(ev.Text)
		case EventStop:
			stopReason = ev.StopReason
			return b.String(), stopReason, nil
		case EventError:
			return b.String(), stopReason, &Error{Message: ev.Message}
		}
	}
}

// Error wraps an upstream mid-stream error event.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "upstream stream error: " + e.Message
}
