// ABOUTME: Server-Sent Events wire parser used by the answer stream client.
// ABOUTME: Frames an io.Reader into named events following W3C EventSource field rules.

package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventName is the name given to events that carry no "event:" field.
const DefaultEventName = "message"

// ErrLineTooLong is returned when a single line exceeds the parser's limit.
var ErrLineTooLong = errors.New("sse: line exceeds maximum length")

// Event is one dispatched Server-Sent Event.
type Event struct {
	// Name comes from the "event:" field, DefaultEventName when absent.
	Name string
	// Data is every "data:" line of the event joined with "\n".
	Data string
	// LastEventID is the most recent "id:" value seen on the stream. Unlike the
	// other fields it carries over to later events.
	LastEventID string
	// Retry is the reconnection delay from a "retry:" field, zero if unset.
	Retry time.Duration
}

// Parser reads events from a stream. It is not safe for concurrent use.
type Parser struct {
	r       *bufio.Reader
	maxLine int
	started bool
	done    bool

	name        string
	data        strings.Builder
	dataLines   int
	lastEventID string
	retry       time.Duration
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxLineLength caps the length of one line. Zero means unlimited.
func WithMaxLineLength(n int) Option {
	return func(p *Parser) { p.maxLine = n }
}

// NewParser returns a Parser reading from r.
func NewParser(r io.Reader, opts ...Option) *Parser {
	p := &Parser{r: bufio.NewReaderSize(r, 4096), maxLine: 1 << 20}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns the next event. It returns io.EOF once the stream is exhausted.
// A trailing event with no terminating blank line is still dispatched.
//
// An event is dispatched when it carried at least one data line or an explicit
// event name, so a bare "event: end" block is not lost.
func (p *Parser) Next() (Event, error) {
	if p.done {
		return Event{}, io.EOF
	}
	for {
		line, err := p.readLine()
		if err == io.EOF {
			p.done = true
			if p.pending() {
				return p.dispatch(), nil
			}
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, err
		}

		if line == "" {
			if p.pending() {
				return p.dispatch(), nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}
		p.field(splitField(line))
	}
}

func (p *Parser) pending() bool {
	return p.dataLines > 0 || p.name != ""
}

func splitField(line string) (string, string) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return name, strings.TrimPrefix(value, " ")
}

func (p *Parser) field(name, value string) {
	switch name {
	case "event":
		p.name = value
	case "data":
		if p.dataLines > 0 {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.dataLines++
	case "id":
		// Ids containing NUL are ignored.
		if !strings.ContainsRune(value, 0) {
			p.lastEventID = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			p.retry = time.Duration(ms) * time.Millisecond
		}
	}
}

func (p *Parser) dispatch() Event {
	evt := Event{
		Name:        p.name,
		Data:        p.data.String(),
		LastEventID: p.lastEventID,
		Retry:       p.retry,
	}
	if evt.Name == "" {
		evt.Name = DefaultEventName
	}
	p.name = ""
	p.data.Reset()
	p.dataLines = 0
	p.retry = 0
	return evt
}

// readLine returns one line without its terminator. CR, LF, and CRLF all end
// a line; a UTF-8 BOM at the start of the stream is dropped.
func (p *Parser) readLine() (string, error) {
	if !p.started {
		p.started = true
		if b, err := p.r.Peek(3); err == nil && string(b) == "\xEF\xBB\xBF" {
			_, _ = p.r.Discard(3)
		}
	}

	var sb strings.Builder
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
			if next, err := p.r.ReadByte(); err == nil && next != '\n' {
				_ = p.r.UnreadByte()
			}
			return sb.String(), nil
		}
		if p.maxLine > 0 && sb.Len() >= p.maxLine {
			return "", ErrLineTooLong
		}
		sb.WriteByte(b)
	}
}
