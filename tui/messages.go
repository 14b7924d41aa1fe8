// ABOUTME: Bubble Tea message types used in the chat TUI message loop.
// ABOUTME: Each type wraps a conversation or command outcome for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/calquity/conversation"
)

// SnapshotMsg carries a conversation snapshot published by the machine.
type SnapshotMsg struct {
	State conversation.State
}

// SubmitResultMsg reports the outcome of starting a turn.
type SubmitResultMsg struct {
	Query string
	Err   error
}

// ExportResultMsg reports the outcome of a transcript export.
type ExportResultMsg struct {
	Path string
	Err  error
}

// NavigatedMsg is sent when a citation is opened.
type NavigatedMsg struct {
	Source  string
	Page    int
	Excerpt string
}

// TickMsg is sent periodically to refresh the elapsed timer.
type TickMsg struct {
	Time time.Time
}
