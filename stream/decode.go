// ABOUTME: Payload decoding for each named answer-stream event.
// ABOUTME: JSON is preferred; text-like events fall back to the raw data instead of failing.

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/2389-research/calquity/citation"
)

// Event names on the answer stream.
const (
	EventToolCall  = "tool_call"
	EventText      = "text"
	EventCitation  = "citation"
	EventComponent = "component"
	EventEnd       = "end"
	EventError     = "error"
)

// decodeMessage reads a progress or error note: {"message": ...}, a JSON
// string, or the raw text as a last resort.
func decodeMessage(data string, keys ...string) string {
	trimmed := strings.TrimSpace(data)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			for _, key := range keys {
				var s string
				if raw, ok := obj[key]; ok && json.Unmarshal(raw, &s) == nil {
					return s
				}
			}
		}
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s
		}
	}
	return data
}

// decodeText reads a text delta. Deltas are JSON strings; anything else
// passes through untouched so whitespace in raw chunks is preserved.
func decodeText(data string) string {
	if strings.HasPrefix(data, `"`) {
		var s string
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			return s
		}
	}
	return data
}

var errInvalidCitation = errors.New("citation needs a positive number and page and a source")

func decodeCitation(data string) (citation.Citation, error) {
	var c citation.Citation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return citation.Citation{}, err
	}
	if !c.Valid() {
		return citation.Citation{}, errInvalidCitation
	}
	return c, nil
}

var errNotObject = errors.New("component payload is not a JSON object")

func decodeComponent(data string) (json.RawMessage, error) {
	raw := bytes.TrimSpace([]byte(data))
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return nil, errNotObject
	}
	return json.RawMessage(raw), nil
}
