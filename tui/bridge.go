// ABOUTME: Bridge connecting the conversation machine to the Bubble Tea message loop.
// ABOUTME: Forwards snapshots via program.Send and provides tea.Cmd factories for submit, export, and ticks.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/calquity/conversation"
	"github.com/2389-research/calquity/transcript"
)

// Controller is the part of the conversation machine the chat drives.
type Controller interface {
	Submit(ctx context.Context, query string) error
	Reset()
	NavigateTo(number int) error
	Snapshot() conversation.State
}

// SnapshotBridge wraps a tea.Program's Send method for injecting conversation
// snapshots into the Bubble Tea message loop.
type SnapshotBridge struct {
	send func(msg tea.Msg)
}

// NewSnapshotBridge creates a SnapshotBridge that sends messages via the given
// function. Typically called with program.Send as the argument.
func NewSnapshotBridge(send func(msg tea.Msg)) *SnapshotBridge {
	return &SnapshotBridge{send: send}
}

// Forward sends every snapshot received on ch until ch is closed. Run it in
// its own goroutine.
func (b *SnapshotBridge) Forward(ch <-chan conversation.State) {
	for s := range ch {
		b.send(SnapshotMsg{State: s})
	}
}

// Navigator returns a conversation navigator that reports opened citations
// to the program. Navigation is triggered from Update, which must not block
// on Send, so delivery happens on its own goroutine.
func (b *SnapshotBridge) Navigator() conversation.Navigator {
	return conversation.NavigatorFunc(func(source string, page int, excerpt string) {
		go b.send(NavigatedMsg{Source: source, Page: page, Excerpt: excerpt})
	})
}

// SubmitCmd returns a tea.Cmd that starts a turn. Submit blocks until the job
// exists and its stream is open, so it must not run on the update loop.
func SubmitCmd(ctx context.Context, c Controller, query string) tea.Cmd {
	return func() tea.Msg {
		return SubmitResultMsg{Query: query, Err: c.Submit(ctx, query)}
	}
}

// ExportCmd returns a tea.Cmd that writes s as a transcript to path.
func ExportCmd(path string, s conversation.State) tea.Cmd {
	return func() tea.Msg {
		return ExportResultMsg{Path: path, Err: transcript.Write(path, s)}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
