// ABOUTME: Conversation data model: jobs, chat messages, streaming phases, and the state snapshot.
// ABOUTME: Snapshots are deep copies so observers never share slices with the live machine.
package conversation

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/viz"
)

// Job is the backend job answering one turn's query.
type Job struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageKind classifies a chat message.
type MessageKind string

const (
	KindUserText      MessageKind = "user-text"
	KindAIText        MessageKind = "ai-text"
	KindToolProgress  MessageKind = "tool-progress"
	KindVisualization MessageKind = "visualization"
)

// ChatMessage is one entry in the conversation.
type ChatMessage struct {
	ID            string              `json:"id"`
	Kind          MessageKind         `json:"kind"`
	Content       string              `json:"content,omitempty"`
	Citations     []citation.Citation `json:"citations,omitempty"`
	Visualization *viz.Spec           `json:"visualization,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (m ChatMessage) clone() ChatMessage {
	if m.Citations != nil {
		m.Citations = append([]citation.Citation(nil), m.Citations...)
	}
	if m.Visualization != nil {
		spec := *m.Visualization
		m.Visualization = &spec
	}
	return m
}

// Phase is the streaming lifecycle position. Exactly one is active.
type Phase string

const (
	PhaseIdle                    Phase = "idle"
	PhaseProcessing              Phase = "processing"
	PhaseStreaming               Phase = "streaming"
	PhaseGeneratingVisualization Phase = "generating-visualization"
)

// Busy reports whether a turn is in flight.
func (p Phase) Busy() bool { return p != PhaseIdle }

// State is the conversation as observers see it.
type State struct {
	// Version increases with every mutation.
	Version               uint64
	Messages              []ChatMessage
	Phase                 Phase
	Job                   *Job
	Citations             []citation.Citation
	Error                 string
	VisualizationReceived bool
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.Messages != nil {
		out.Messages = make([]ChatMessage, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.clone()
		}
	}
	if s.Citations != nil {
		out.Citations = append([]citation.Citation(nil), s.Citations...)
	}
	if s.Job != nil {
		job := *s.Job
		out.Job = &job
	}
	return out
}

// LastAnswer returns the content of the most recent ai-text message.
func (s State) LastAnswer() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Kind == KindAIText {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastVisualization returns the most recent visualization, if any.
func (s State) LastVisualization() (viz.Spec, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if m := s.Messages[i]; m.Kind == KindVisualization && m.Visualization != nil {
			return *m.Visualization, true
		}
	}
	return viz.Spec{}, false
}

func newID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
