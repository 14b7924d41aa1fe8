// ABOUTME: Answer stream client: opens GET /stream/{job_id} and routes named SSE events to handlers.
// ABOUTME: Tracks normal termination so a close without "end" surfaces exactly one failure.

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/llm/sse"
)

// Handlers receive decoded stream events. Nil handlers are skipped. All
// handlers for one Handle run on its reader goroutine, one at a time, in
// arrival order.
type Handlers struct {
	ToolProgress  func(msg string)
	TextDelta     func(chunk string)
	Citation      func(c citation.Citation)
	Visualization func(raw json.RawMessage)
	// End fires once when the server signals normal completion.
	End func()
	// Failure fires once with a *ProtocolError for a server error event or a
	// *TransportError when the connection ends without "end".
	Failure func(err error)
}

// Client opens answer streams against one backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu   sync.Mutex
	live map[string]*Handle
}

// NewClient returns a Client for the backend at baseURL. A nil httpClient uses
// http.DefaultClient; a nil logger discards logs.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.With(zap.String("component", "stream")),
		live:    make(map[string]*Handle),
	}
}

// Open connects to the event stream for jobID and starts delivering events to
// h. Any live handle this client holds for the same job is closed first.
// Connection and status failures are returned as *TransportError; once Open
// succeeds all further failures arrive through h.Failure.
func (c *Client) Open(ctx context.Context, jobID string, h Handlers) (*Handle, error) {
	if jobID == "" {
		return nil, &TransportError{Err: errors.New("empty job id")}
	}

	c.mu.Lock()
	prev := c.live[jobID]
	delete(c.live, jobID)
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/stream/"+url.PathEscape(jobID), nil)
	if err != nil {
		cancel()
		return nil, &TransportError{JobID: jobID, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, &TransportError{JobID: jobID, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, &TransportError{JobID: jobID, StatusCode: resp.StatusCode}
	}

	handle := &Handle{
		jobID:    jobID,
		handlers: h,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   c.logger.With(zap.String("job_id", jobID)),
	}
	c.mu.Lock()
	c.live[jobID] = handle
	c.mu.Unlock()

	c.logger.Debug("action=open", zap.String("job_id", jobID))
	go func() {
		defer c.forget(jobID, handle)
		defer resp.Body.Close()
		handle.run(sse.NewParser(resp.Body))
	}()
	return handle, nil
}

func (c *Client) forget(jobID string, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live[jobID] == h {
		delete(c.live, jobID)
	}
}

// Handle is one open answer stream.
type Handle struct {
	jobID    string
	handlers Handlers
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *zap.Logger

	// mu serializes handler dispatch with Close. closed stops all further
	// dispatch; dispatching is set while a handler runs so Close never waits
	// on a handler (including when a handler closes its own stream).
	mu          sync.Mutex
	closed      atomic.Bool
	dispatching atomic.Bool
	ended       atomic.Bool
	closeOnce   sync.Once
}

// Done is closed when the reader goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// EndedNormally reports whether the server sent "end".
func (h *Handle) EndedNormally() bool { return h.ended.Load() }

// Close releases the connection. It is idempotent and safe to call from a
// handler. No handler starts after Close returns.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.cancel()
	})
	if h.dispatching.Load() {
		return
	}
	// Wait out a dispatch that passed its closed check before we set it.
	h.mu.Lock()
	h.mu.Unlock()
}

// deliver runs fn unless the handle is closed. terminal closes the handle
// before fn runs so nothing can follow it.
func (h *Handle) deliver(terminal bool, fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return false
	}
	if terminal {
		h.closeOnce.Do(func() {
			h.closed.Store(true)
			h.cancel()
		})
	}
	if fn == nil {
		return true
	}
	h.dispatching.Store(true)
	defer h.dispatching.Store(false)
	fn()
	return true
}

func (h *Handle) run(p *sse.Parser) {
	defer close(h.done)
	for {
		evt, err := p.Next()
		if err != nil {
			if h.closed.Load() {
				return
			}
			h.fail(&TransportError{JobID: h.jobID, Err: transportCause(err)})
			return
		}
		if h.route(evt) {
			return
		}
	}
}

// route dispatches one event and reports whether the stream is finished.
func (h *Handle) route(evt sse.Event) bool {
	switch evt.Name {
	case EventToolCall:
		msg := decodeMessage(evt.Data, "message")
		if f := h.handlers.ToolProgress; f != nil {
			h.deliver(false, func() { f(msg) })
		}
	case EventText:
		chunk := decodeText(evt.Data)
		if f := h.handlers.TextDelta; f != nil {
			h.deliver(false, func() { f(chunk) })
		}
	case EventCitation:
		c, err := decodeCitation(evt.Data)
		if err != nil {
			h.skip(evt, err)
			return false
		}
		if f := h.handlers.Citation; f != nil {
			h.deliver(false, func() { f(c) })
		}
	case EventComponent:
		raw, err := decodeComponent(evt.Data)
		if err != nil {
			h.skip(evt, err)
			return false
		}
		if f := h.handlers.Visualization; f != nil {
			h.deliver(false, func() { f(raw) })
		}
	case EventEnd:
		h.ended.Store(true)
		h.logger.Debug("action=end")
		h.deliver(true, h.handlers.End)
		return true
	case EventError:
		perr := &ProtocolError{JobID: h.jobID, Message: decodeMessage(evt.Data, "message", "error", "detail")}
		if perr.Message == "" {
			perr.Message = "stream error"
		}
		h.fail(perr)
		return true
	default:
		h.logger.Debug("action=ignore_event", zap.String("event", evt.Name))
	}
	return false
}

func (h *Handle) fail(err error) {
	h.logger.Warn("action=fail", zap.Error(err))
	var fn func()
	if f := h.handlers.Failure; f != nil {
		fn = func() { f(err) }
	}
	h.deliver(true, fn)
}

func (h *Handle) skip(evt sse.Event, err error) {
	h.logger.Warn("action=skip_event",
		zap.String("event", evt.Name),
		zap.Error(&MalformedPayloadError{Event: evt.Name, Err: err}))
}

// transportCause drops io.EOF, which only means the server hung up.
func transportCause(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
