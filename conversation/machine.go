// ABOUTME: Streaming state machine owning the conversation: submit, stream events, end, error, reset.
// ABOUTME: Each turn carries a token and a context so late stream events and fallback results are dropped.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/2389-research/calquity/backend"
	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/fallback"
	"github.com/2389-research/calquity/stream"
	"github.com/2389-research/calquity/viz"
)

var (
	// ErrAlreadyStreaming is returned by Submit while a turn is in flight.
	ErrAlreadyStreaming = errors.New("a turn is already in progress")
	// ErrEmptyQuery is returned by Submit for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrUnknownCitation is returned by NavigateTo for a number never seen.
	ErrUnknownCitation = errors.New("unknown citation")
)

// JobCreator turns a query into a backend job.
type JobCreator interface {
	CreateJob(ctx context.Context, query string) (backend.JobResponse, error)
}

// Stream is an open answer stream.
type Stream interface {
	Close()
}

// StreamOpener opens the answer stream for a job.
type StreamOpener interface {
	Open(ctx context.Context, jobID string, h stream.Handlers) (Stream, error)
}

// StreamClient adapts a stream.Client to StreamOpener.
func StreamClient(c *stream.Client) StreamOpener { return streamClient{c} }

type streamClient struct{ c *stream.Client }

func (s streamClient) Open(ctx context.Context, jobID string, h stream.Handlers) (Stream, error) {
	handle, err := s.c.Open(ctx, jobID, h)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Visualizer produces the fallback visualization for a turn.
type Visualizer interface {
	Run(ctx context.Context, in fallback.Input) viz.Spec
}

// Navigator shows a cited page, e.g. by opening a document viewer.
type Navigator interface {
	NavigateTo(source string, page int, excerpt string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(source string, page int, excerpt string)

func (f NavigatorFunc) NavigateTo(source string, page int, excerpt string) { f(source, page, excerpt) }

// Option configures a Machine.
type Option func(*Machine)

// WithNavigator sets where NavigateTo sends citations.
func WithNavigator(n Navigator) Option {
	return func(m *Machine) { m.navigator = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithClock replaces time.Now for message and job timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the single owner of conversation State. It is safe for
// concurrent use; stream callbacks arrive on the stream's goroutine.
type Machine struct {
	jobs       JobCreator
	streams    StreamOpener
	visualizer Visualizer
	navigator  Navigator
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	state   State
	tracker *citation.Tracker
	// turn is bumped by Submit and Reset; callbacks carrying an older value are stale.
	turn    uint64
	turnCtx context.Context
	cancel  context.CancelFunc
	stream  Stream
	query   string
	// answer indexes the open ai-text message, or -1.
	answer int

	bg   sync.WaitGroup
	subs broadcaster
}

// NewMachine returns an idle Machine.
func NewMachine(jobs JobCreator, streams StreamOpener, v Visualizer, opts ...Option) *Machine {
	m := &Machine{
		jobs:       jobs,
		streams:    streams,
		visualizer: v,
		logger:     zap.NewNop(),
		now:        time.Now,
		state:      State{Phase: PhaseIdle},
		tracker:    citation.NewTracker(),
		answer:     -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "conversation"))
	return m
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Subscribe returns a channel receiving a snapshot after every mutation.
func (m *Machine) Subscribe() <-chan State {
	return m.subs.subscribe()
}

// Unsubscribe stops and closes a channel returned by Subscribe.
func (m *Machine) Unsubscribe(ch <-chan State) {
	m.subs.unsubscribe(ch)
}

// Submit starts a turn for query: it records the user message, creates the
// job, and opens its answer stream. It returns once the stream is open.
func (m *Machine) Submit(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}

	m.mu.Lock()
	if m.state.Phase.Busy() {
		m.mu.Unlock()
		return ErrAlreadyStreaming
	}
	m.turn++
	t := m.turn
	turnCtx, cancel := context.WithCancel(ctx)
	m.turnCtx, m.cancel = turnCtx, cancel
	prev := m.stream
	m.stream = nil
	m.query = query
	m.answer = -1
	m.tracker.Clear()
	m.state.Citations = nil
	m.state.Error = ""
	m.state.Job = nil
	m.state.VisualizationReceived = false
	m.state.Messages = append(m.state.Messages, ChatMessage{
		ID:        newID(),
		Kind:      KindUserText,
		Content:   query,
		CreatedAt: m.now(),
	})
	m.state.Phase = PhaseProcessing
	snap := m.commitLocked()
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	m.subs.broadcast(snap)
	m.logger.Info("action=submit", zap.Uint64("turn", t))

	job, err := m.jobs.CreateJob(turnCtx, query)
	if err != nil {
		m.logger.Warn("action=create_job outcome=error", zap.Error(err))
		m.fail(t, err)
		return err
	}

	if !m.apply(t, func() bool {
		m.state.Job = &Job{ID: job.JobID, Query: query, CreatedAt: m.now()}
		return true
	}) {
		return nil
	}

	h, err := m.streams.Open(turnCtx, job.JobID, m.handlers(t))
	if err != nil {
		err = fmt.Errorf("opening stream: %w", err)
		m.fail(t, err)
		return err
	}

	m.mu.Lock()
	if m.turn != t {
		m.mu.Unlock()
		h.Close()
		return nil
	}
	m.stream = h
	m.mu.Unlock()
	return nil
}

func (m *Machine) handlers(t uint64) stream.Handlers {
	return stream.Handlers{
		ToolProgress:  func(msg string) { m.apply(t, func() bool { return m.toolProgressLocked(msg) }) },
		TextDelta:     func(chunk string) { m.apply(t, func() bool { return m.textDeltaLocked(chunk) }) },
		Citation:      func(c citation.Citation) { m.apply(t, func() bool { return m.citationLocked(c) }) },
		Visualization: func(raw json.RawMessage) { m.apply(t, func() bool { return m.visualizationLocked(raw) }) },
		End:           func() { m.end(t) },
		Failure:       func(err error) { m.fail(t, err) },
	}
}

// OnToolProgress appends a progress note for the current turn.
func (m *Machine) OnToolProgress(msg string) {
	m.apply(m.currentTurn(), func() bool { return m.toolProgressLocked(msg) })
}

// OnTextDelta appends chunk to the turn's answer, creating it on first use.
func (m *Machine) OnTextDelta(chunk string) {
	m.apply(m.currentTurn(), func() bool { return m.textDeltaLocked(chunk) })
}

// OnCitation records c for the turn. Duplicate numbers are dropped.
func (m *Machine) OnCitation(c citation.Citation) {
	m.apply(m.currentTurn(), func() bool { return m.citationLocked(c) })
}

// OnVisualization decodes and records a streamed visualization.
func (m *Machine) OnVisualization(raw json.RawMessage) {
	m.apply(m.currentTurn(), func() bool { return m.visualizationLocked(raw) })
}

// OnEnd finishes the stream part of the turn.
func (m *Machine) OnEnd() { m.end(m.currentTurn()) }

// OnError ends the turn with msg as its error.
func (m *Machine) OnError(msg string) {
	m.fail(m.currentTurn(), &stream.ProtocolError{Message: msg})
}

func (m *Machine) currentTurn() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// apply runs fn under the lock if turn t is still current and broadcasts the
// result when fn reports a change. It returns false for a stale turn.
func (m *Machine) apply(t uint64, fn func() bool) bool {
	m.mu.Lock()
	if m.turn != t {
		m.mu.Unlock()
		return false
	}
	if !fn() {
		m.mu.Unlock()
		return true
	}
	snap := m.commitLocked()
	m.mu.Unlock()
	m.subs.broadcast(snap)
	return true
}

func (m *Machine) receiving() bool {
	return m.state.Phase == PhaseProcessing || m.state.Phase == PhaseStreaming
}

func (m *Machine) toolProgressLocked(msg string) bool {
	if !m.receiving() {
		return false
	}
	m.state.Messages = append(m.state.Messages, ChatMessage{
		ID:        newID(),
		Kind:      KindToolProgress,
		Content:   msg,
		CreatedAt: m.now(),
	})
	return true
}

func (m *Machine) textDeltaLocked(chunk string) bool {
	if !m.receiving() {
		return false
	}
	if m.answer >= 0 {
		m.state.Messages[m.answer].Content += chunk
		return true
	}
	m.state.Messages = append(m.state.Messages, ChatMessage{
		ID:        newID(),
		Kind:      KindAIText,
		Content:   chunk,
		Citations: m.tracker.All(),
		CreatedAt: m.now(),
	})
	m.answer = len(m.state.Messages) - 1
	m.state.Phase = PhaseStreaming
	return true
}

func (m *Machine) citationLocked(c citation.Citation) bool {
	if !m.receiving() || !m.tracker.Add(c) {
		return false
	}
	m.state.Citations = append(m.state.Citations, c)
	if m.answer >= 0 {
		msg := &m.state.Messages[m.answer]
		msg.Citations = append(msg.Citations, c)
	}
	return true
}

func (m *Machine) visualizationLocked(raw json.RawMessage) bool {
	if !m.receiving() {
		return false
	}
	if m.state.VisualizationReceived {
		m.logger.Debug("action=visualization outcome=extra_dropped")
		return false
	}
	res := viz.Decode(raw)
	if res.Err != nil {
		m.logger.Warn("action=visualization outcome=malformed",
			zap.Error(&stream.MalformedPayloadError{Event: stream.EventComponent, Err: res.Err}))
		return false
	}
	m.appendVisualizationLocked(res.Spec)
	m.state.VisualizationReceived = true
	return true
}

func (m *Machine) appendVisualizationLocked(spec viz.Spec) {
	m.state.Messages = append(m.state.Messages, ChatMessage{
		ID:            newID(),
		Kind:          KindVisualization,
		Visualization: &spec,
		CreatedAt:     m.now(),
	})
}

// end closes the stream and either finishes the turn or hands it to the
// visualizer.
func (m *Machine) end(t uint64) {
	m.mu.Lock()
	if m.turn != t || !m.receiving() {
		m.mu.Unlock()
		return
	}
	s := m.stream
	m.stream = nil
	answer := ""
	if m.answer >= 0 {
		answer = m.state.Messages[m.answer].Content
	}
	m.answer = -1

	if m.state.VisualizationReceived {
		m.state.Phase = PhaseIdle
		cancel := m.releaseLocked()
		snap := m.commitLocked()
		m.mu.Unlock()
		cancel()
		closeStream(s)
		m.subs.broadcast(snap)
		m.logger.Info("action=end outcome=visualized", zap.Uint64("turn", t))
		return
	}

	m.state.Phase = PhaseGeneratingVisualization
	in := fallback.NewInput(m.query, answer, m.tracker)
	cited := m.tracker.Len()
	ctx := m.turnCtx
	snap := m.commitLocked()
	m.bg.Add(1)
	m.mu.Unlock()

	closeStream(s)
	m.subs.broadcast(snap)
	m.logger.Info("action=end outcome=generating",
		zap.Uint64("turn", t),
		zap.Int("citations", cited))
	go m.visualize(ctx, t, in)
}

func (m *Machine) visualize(ctx context.Context, t uint64, in fallback.Input) {
	defer m.bg.Done()
	spec := viz.DefaultCard()
	if m.visualizer != nil {
		spec = m.visualizer.Run(ctx, in)
	}
	cancel := context.CancelFunc(func() {})
	applied := false
	m.apply(t, func() bool {
		if m.state.Phase != PhaseGeneratingVisualization {
			return false
		}
		m.appendVisualizationLocked(spec)
		m.state.Phase = PhaseIdle
		cancel = m.releaseLocked()
		applied = true
		return true
	})
	cancel()
	if !applied {
		m.logger.Debug("action=visualize outcome=stale_dropped", zap.Uint64("turn", t))
	}
}

// fail ends turn t with err regardless of phase.
func (m *Machine) fail(t uint64, err error) {
	m.mu.Lock()
	if m.turn != t {
		m.mu.Unlock()
		return
	}
	m.state.Error = err.Error()
	m.state.Phase = PhaseIdle
	m.answer = -1
	s := m.stream
	m.stream = nil
	cancel := m.releaseLocked()
	snap := m.commitLocked()
	m.mu.Unlock()

	cancel()
	closeStream(s)
	m.subs.broadcast(snap)
	m.logger.Warn("action=fail", zap.Uint64("turn", t), zap.Error(err))
}

// Reset abandons any turn in flight and clears the conversation.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.turn++
	s := m.stream
	m.stream = nil
	cancel := m.releaseLocked()
	m.query = ""
	m.answer = -1
	m.tracker.Clear()
	m.state = State{Version: m.state.Version, Phase: PhaseIdle}
	snap := m.commitLocked()
	m.mu.Unlock()

	cancel()
	closeStream(s)
	m.subs.broadcast(snap)
}

// Wait blocks until background visualization work has settled.
func (m *Machine) Wait() { m.bg.Wait() }

// Close resets the machine, waits for background work, and closes every
// subscriber channel.
func (m *Machine) Close() {
	m.Reset()
	m.Wait()
	m.subs.closeAll()
}

// NavigateTo sends the cited page for number to the navigator. The current
// turn's citations are searched first, then earlier answers.
func (m *Machine) NavigateTo(number int) error {
	m.mu.Lock()
	c, ok := m.tracker.Lookup(number)
	for i := len(m.state.Messages) - 1; !ok && i >= 0; i-- {
		for _, mc := range m.state.Messages[i].Citations {
			if mc.Number == number {
				c, ok = mc, true
				break
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: [%d]", ErrUnknownCitation, number)
	}
	if m.navigator != nil {
		m.navigator.NavigateTo(c.Source, c.Page, c.Excerpt)
	}
	return nil
}

// releaseLocked detaches the turn context and returns its cancel func, which
// is never nil.
func (m *Machine) releaseLocked() context.CancelFunc {
	cancel := m.cancel
	m.cancel = nil
	m.turnCtx = nil
	if cancel == nil {
		return func() {}
	}
	return cancel
}

func (m *Machine) commitLocked() State {
	m.state.Version++
	return m.state.Clone()
}

func closeStream(s Stream) {
	if s != nil {
		s.Close()
	}
}
