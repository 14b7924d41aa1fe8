// ABOUTME: Tests for the answer stream client against httptest SSE servers.
// ABOUTME: Covers routing, payload fallbacks, terminal semantics, and close-without-leak behavior.

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/calquity/citation"
)

// sseServer writes frames for /stream/{id}, flushing after each, then either
// returns (closing the connection) or holds the connection open until release
// is closed or the client goes away.
func sseServer(t *testing.T, frames []string, release chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream/job-1" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
		if release != nil {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// recorder captures handler calls in order.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	cites  []citation.Citation
	errs   []error
	ended  chan struct{}
	failed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ended: make(chan struct{}, 1), failed: make(chan struct{}, 1)}
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		ToolProgress: func(msg string) { r.add("tool:" + msg) },
		TextDelta:    func(chunk string) { r.add("text:" + chunk) },
		Citation: func(c citation.Citation) {
			r.mu.Lock()
			r.cites = append(r.cites, c)
			r.mu.Unlock()
			r.add(fmt.Sprintf("cite:%d", c.Number))
		},
		Visualization: func(raw json.RawMessage) { r.add("viz:" + string(raw)) },
		End: func() {
			r.add("end")
			r.ended <- struct{}{}
		},
		Failure: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.add("fail")
			r.failed <- struct{}{}
		},
	}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stream reader did not exit")
	}
}

func TestStreamRoutesEventsInOrder(t *testing.T) {
	srv := sseServer(t, []string{
		"event: tool_call\ndata: {\"message\": \"Searching documents...\"}\n\n",
		"event: text\ndata: \"Revenue \"\n\n",
		"event: text\ndata: \"grew 15%\"\n\n",
		"event: citation\ndata: {\"number\": 1, \"source\": \"q3.pdf\", \"page\": 4, \"excerpt\": \"Revenue...\"}\n\n",
		"event: component\ndata: {\"component\":\"MetricCard\",\"props\":{\"title\":\"Growth\",\"value\":\"15%\"}}\n\n",
		"event: end\ndata: complete\n\n",
	}, nil)

	rec := newRecorder()
	h, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", rec.handlers())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, []string{
		"tool:Searching documents...",
		"text:Revenue ",
		"text:grew 15%",
		"cite:1",
		`viz:{"component":"MetricCard","props":{"title":"Growth","value":"15%"}}`,
		"end",
	}, rec.snapshot())
	assert.True(t, h.EndedNormally())
	assert.Empty(t, rec.errs)
	assert.Equal(t, citation.Citation{Number: 1, Source: "q3.pdf", Page: 4, Excerpt: "Revenue..."}, rec.cites[0])
}

func TestStreamPayloadFallbacks(t *testing.T) {
	srv := sseServer(t, []string{
		"event: tool_call\ndata: plain progress note\n\n",
		"event: tool_call\ndata: \"quoted note\"\n\n",
		"event: text\ndata: raw chunk\n\n",
		"event: citation\ndata: {not json\n\n",
		"event: citation\ndata: {\"number\": 0, \"source\": \"a.pdf\", \"page\": 1}\n\n",
		"event: component\ndata: [1,2,3]\n\n",
		"event: heartbeat\ndata: {}\n\n",
		"event: text\ndata: \"after\"\n\n",
		"event: end\n\n",
	}, nil)

	rec := newRecorder()
	h, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", rec.handlers())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, []string{
		"tool:plain progress note",
		"tool:quoted note",
		"text:raw chunk",
		"text:after",
		"end",
	}, rec.snapshot())
}

func TestStreamCloseWithoutEndIsTransportError(t *testing.T) {
	srv := sseServer(t, []string{"event: text\ndata: \"partial\"\n\n"}, nil)

	rec := newRecorder()
	h, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", rec.handlers())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, []string{"text:partial", "fail"}, rec.snapshot())
	require.Len(t, rec.errs, 1)
	var terr *TransportError
	assert.True(t, errors.As(rec.errs[0], &terr))
	assert.False(t, h.EndedNormally())
}

func TestStreamErrorEventIsTerminal(t *testing.T) {
	srv := sseServer(t, []string{
		"event: error\ndata: Document index unavailable\n\n",
		"event: text\ndata: \"ignored\"\n\n",
	}, nil)

	rec := newRecorder()
	h, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", rec.handlers())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, []string{"fail"}, rec.snapshot())
	var perr *ProtocolError
	require.True(t, errors.As(rec.errs[0], &perr))
	assert.Equal(t, "Document index unavailable", perr.Message)
}

func TestStreamErrorEventJSONMessage(t *testing.T) {
	assert.Equal(t, "quota exceeded", decodeMessage(`{"message":"quota exceeded"}`, "message", "error"))
	assert.Equal(t, "bad job", decodeMessage(`{"error":"bad job"}`, "message", "error"))
	assert.Equal(t, "quoted", decodeMessage(`"quoted"`, "message"))
	assert.Equal(t, `{"other":1}`, decodeMessage(`{"other":1}`, "message"))
}

func TestOpenRejectsBadStatus(t *testing.T) {
	srv := sseServer(t, nil, nil)
	_, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "missing", Handlers{})
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)

	_, err = NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "", Handlers{})
	assert.Error(t, err)
}

func TestCloseStopsDeliveryAndSuppressesFailure(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := sseServer(t, []string{"event: text\ndata: \"first\"\n\n"}, release)

	rec := newRecorder()
	got := make(chan struct{}, 1)
	handlers := rec.handlers()
	handlers.TextDelta = func(chunk string) {
		rec.add("text:" + chunk)
		got <- struct{}{}
	}
	h, err := NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", handlers)
	require.NoError(t, err)

	<-got
	h.Close()
	h.Close()
	waitDone(t, h)

	assert.Equal(t, []string{"text:first"}, rec.snapshot())
	assert.Empty(t, rec.errs)
}

func TestHandlerMayCloseItsOwnStream(t *testing.T) {
	srv := sseServer(t, []string{
		"event: text\ndata: \"one\"\n\n",
		"event: text\ndata: \"two\"\n\n",
		"event: end\n\n",
	}, nil)

	var h *Handle
	var mu sync.Mutex
	var chunks []string
	ready := make(chan struct{})
	handlers := Handlers{
		TextDelta: func(chunk string) {
			<-ready
			mu.Lock()
			chunks = append(chunks, chunk)
			mu.Unlock()
			h.Close()
		},
	}
	var err error
	h, err = NewClient(srv.URL, srv.Client(), nil).Open(context.Background(), "job-1", handlers)
	require.NoError(t, err)
	close(ready)
	waitDone(t, h)

	assert.Equal(t, []string{"one"}, chunks)
}

func TestReopenClosesPreviousHandle(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := sseServer(t, nil, release)
	client := NewClient(srv.URL, srv.Client(), nil)

	first, err := client.Open(context.Background(), "job-1", Handlers{})
	require.NoError(t, err)
	second, err := client.Open(context.Background(), "job-1", Handlers{})
	require.NoError(t, err)

	waitDone(t, first)
	select {
	case <-second.Done():
		t.Fatal("second handle should still be open")
	default:
	}
	second.Close()
	waitDone(t, second)
}
