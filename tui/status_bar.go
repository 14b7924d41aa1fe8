// ABOUTME: Implements a single-line status bar for the bottom of the chat TUI.
// ABOUTME: Displays the streaming phase, current job, citation count, and elapsed turn time.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/calquity/conversation"
)

// StatusBarModel displays the conversation phase in a single line.
type StatusBarModel struct {
	phase     conversation.Phase
	jobID     string
	citations int
	turnStart time.Time
	width     int
}

// NewStatusBarModel creates an idle StatusBarModel.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{phase: conversation.PhaseIdle}
}

// SetState copies the fields the bar shows from s. The turn timer starts when
// the phase leaves idle and stops when it returns.
func (m *StatusBarModel) SetState(s conversation.State) {
	switch {
	case s.Phase.Busy() && !m.phase.Busy():
		m.turnStart = time.Now()
	case !s.Phase.Busy():
		m.turnStart = time.Time{}
	}
	m.phase = s.Phase
	m.jobID = ""
	if s.Job != nil {
		m.jobID = s.Job.ID
	}
	m.citations = len(s.Citations)
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since the current turn started, or zero when idle.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.turnStart.IsZero() {
		return 0
	}
	return time.Since(m.turnStart)
}

// formatElapsed formats a duration as "12s" under a minute and "2m30s" above.
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	job := m.jobID
	if job == "" {
		job = "-"
	}

	content := fmt.Sprintf("%s | Job: %s | Citations: %d | Elapsed: %s",
		StyleForPhase(m.phase).Render(string(m.phase)), job, m.citations, formatElapsed(m.Elapsed()))

	style := StatusBarStyle.Width(m.width)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
