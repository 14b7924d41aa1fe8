// ABOUTME: Tests for the Server-Sent Events wire parser.
// ABOUTME: Covers named answer-stream events, multi-line data, ids, retry, comments, and line endings.

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, input string) []Event {
	t.Helper()
	p := NewParser(strings.NewReader(input))
	var events []Event
	for {
		evt, err := p.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		events = append(events, evt)
	}
}

func TestSingleDataLineDefaultsToMessage(t *testing.T) {
	events := collect(t, "data: hello world\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != DefaultEventName {
		t.Errorf("expected name %q, got %q", DefaultEventName, events[0].Name)
	}
	if events[0].Data != "hello world" {
		t.Errorf("expected data %q, got %q", "hello world", events[0].Data)
	}
	if events[0].Retry != 0 {
		t.Errorf("expected zero retry, got %s", events[0].Retry)
	}
}

func TestAnswerStreamSequence(t *testing.T) {
	input := "event: tool_call\ndata: {\"message\": \"Searching documents\"}\n\n" +
		"event: text\ndata: \"Revenue \"\n\n" +
		"event: text\ndata: \"grew\"\n\n" +
		"event: citation\ndata: {\"number\": 1, \"source\": \"q3.pdf\", \"page\": 4, \"excerpt\": \"...\"}\n\n" +
		"event: end\ndata: complete\n\n"

	events := collect(t, input)
	wantNames := []string{"tool_call", "text", "text", "citation", "end"}
	if len(events) != len(wantNames) {
		t.Fatalf("expected %d events, got %d", len(wantNames), len(events))
	}
	for i, name := range wantNames {
		if events[i].Name != name {
			t.Errorf("event %d: expected name %q, got %q", i, name, events[i].Name)
		}
	}
	if events[1].Data != `"Revenue "` {
		t.Errorf("expected raw JSON string data, got %q", events[1].Data)
	}
	if events[4].Data != "complete" {
		t.Errorf("expected end data %q, got %q", "complete", events[4].Data)
	}
}

func TestMultiLineDataJoinedWithNewline(t *testing.T) {
	events := collect(t, "data: line one\ndata:\ndata: line three\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := "line one\n\nline three"
	if events[0].Data != want {
		t.Errorf("expected data %q, got %q", want, events[0].Data)
	}
}

func TestEventNameWithoutDataIsDispatched(t *testing.T) {
	events := collect(t, "event: end\n\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "end" || events[0].Data != "" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestEmptyDataFieldDispatchesEmptyString(t *testing.T) {
	for _, input := range []string{"data\n\n", "data:\n\n", "data: \n\n"} {
		events := collect(t, input)
		if len(events) != 1 {
			t.Fatalf("%q: expected 1 event, got %d", input, len(events))
		}
		if events[0].Data != "" {
			t.Errorf("%q: expected empty data, got %q", input, events[0].Data)
		}
	}
}

func TestOnlySingleLeadingSpaceStripped(t *testing.T) {
	events := collect(t, "data:  two spaces\n\n")
	if events[0].Data != " two spaces" {
		t.Errorf("expected %q, got %q", " two spaces", events[0].Data)
	}
	events = collect(t, "data:nospace\n\n")
	if events[0].Data != "nospace" {
		t.Errorf("expected %q, got %q", "nospace", events[0].Data)
	}
}

func TestCommentsSkipped(t *testing.T) {
	events := collect(t, ": keepalive\nevent: text\n: another\ndata: \"chunk\"\n\n: trailing\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "text" || events[0].Data != `"chunk"` {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestNameResetsBetweenEvents(t *testing.T) {
	events := collect(t, "event: citation\ndata: {}\n\ndata: plain\n\n")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Name != DefaultEventName {
		t.Errorf("expected second event name to reset, got %q", events[1].Name)
	}
}

func TestLastEventIDPersists(t *testing.T) {
	events := collect(t, "id: 7\ndata: a\n\ndata: b\n\nid: 9\ndata: c\n\n")
	want := []string{"7", "7", "9"}
	for i, id := range want {
		if events[i].LastEventID != id {
			t.Errorf("event %d: expected id %q, got %q", i, id, events[i].LastEventID)
		}
	}
}

func TestIDWithNulIgnored(t *testing.T) {
	events := collect(t, "id: ok\ndata: a\n\nid: bad\x00id\ndata: b\n\n")
	if events[1].LastEventID != "ok" {
		t.Errorf("expected id to stay %q, got %q", "ok", events[1].LastEventID)
	}
}

func TestRetryField(t *testing.T) {
	events := collect(t, "retry: 1500\ndata: a\n\nretry: soon\ndata: b\n\n")
	if events[0].Retry != 1500*time.Millisecond {
		t.Errorf("expected 1.5s retry, got %s", events[0].Retry)
	}
	if events[1].Retry != 0 {
		t.Errorf("expected invalid retry to be ignored, got %s", events[1].Retry)
	}
}

func TestLineEndings(t *testing.T) {
	cases := map[string]string{
		"crlf":  "event: text\r\ndata: \"x\"\r\n\r\n",
		"cr":    "event: text\rdata: \"x\"\r\r",
		"mixed": "event: text\r\ndata: \"x\"\n\r\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			events := collect(t, input)
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Name != "text" || events[0].Data != `"x"` {
				t.Errorf("unexpected event %+v", events[0])
			}
		})
	}
}

func TestLeadingBOMDropped(t *testing.T) {
	events := collect(t, "\xEF\xBB\xBFevent: end\ndata: complete\n\n")
	if len(events) != 1 || events[0].Name != "end" {
		t.Fatalf("expected end event after BOM, got %+v", events)
	}
}

func TestTrailingEventWithoutBlankLine(t *testing.T) {
	events := collect(t, "event: text\ndata: \"a\"\n\nevent: end\ndata: complete")
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Name != "end" {
		t.Errorf("expected trailing end event, got %q", events[1].Name)
	}
}

func TestEmptyInputs(t *testing.T) {
	for _, input := range []string{"", "\n\n\n", ": only\n: comments\n"} {
		if events := collect(t, input); len(events) != 0 {
			t.Errorf("%q: expected no events, got %d", input, len(events))
		}
	}
}

func TestNextAfterEOFKeepsReturningEOF(t *testing.T) {
	p := NewParser(strings.NewReader("data: x\n\n"))
	if _, err := p.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	}
}

func TestLineTooLong(t *testing.T) {
	p := NewParser(strings.NewReader("data: "+strings.Repeat("x", 64)+"\n\n"), WithMaxLineLength(16))
	if _, err := p.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestLargePayloadWithinLimit(t *testing.T) {
	payload := strings.Repeat("a", 100000)
	events := collect(t, "event: text\ndata: "+payload+"\n\n")
	if len(events[0].Data) != len(payload) {
		t.Errorf("expected %d bytes, got %d", len(payload), len(events[0].Data))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadErrorSurfaces(t *testing.T) {
	p := NewParser(failingReader{})
	_, err := p.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("expected read error, got %v", err)
	}
}
