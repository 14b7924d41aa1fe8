// ABOUTME: Tests for StatusBarModel which renders the single-line conversation status bar.
// ABOUTME: Covers state copying, the turn timer, elapsed formatting, and View() rendering.
package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/conversation"
)

func TestStatusBarNewStatusBarModel(t *testing.T) {
	m := NewStatusBarModel()
	if m.phase != conversation.PhaseIdle {
		t.Errorf("phase = %q, want idle", m.phase)
	}
	if m.Elapsed() != 0 {
		t.Errorf("Elapsed = %v, want 0", m.Elapsed())
	}
}

func TestStatusBarSetState(t *testing.T) {
	m := NewStatusBarModel()
	m.SetState(conversation.State{
		Phase:     conversation.PhaseStreaming,
		Job:       &conversation.Job{ID: "job-42"},
		Citations: []citation.Citation{{Number: 1}, {Number: 2}},
	})

	if m.phase != conversation.PhaseStreaming || m.jobID != "job-42" || m.citations != 2 {
		t.Errorf("unexpected bar state: %+v", m)
	}
	if m.turnStart.IsZero() {
		t.Error("turn timer should start when leaving idle")
	}

	started := m.turnStart
	m.SetState(conversation.State{Phase: conversation.PhaseGeneratingVisualization})
	if !m.turnStart.Equal(started) {
		t.Error("turn timer should not restart between busy phases")
	}

	m.SetState(conversation.State{Phase: conversation.PhaseIdle})
	if !m.turnStart.IsZero() || m.jobID != "" {
		t.Errorf("idle should stop the timer and clear the job: %+v", m)
	}
}

func TestStatusBarFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{12 * time.Second, "12s"},
		{90 * time.Second, "1m30s"},
		{150*time.Second + 400*time.Millisecond, "2m30s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	m := NewStatusBarModel()
	m.SetWidth(120)
	m.SetState(conversation.State{Phase: conversation.PhaseProcessing, Job: &conversation.Job{ID: "j1"}})

	view := m.View()
	for _, want := range []string{"processing", "Job: j1", "Citations: 0", "Elapsed:"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q: %q", want, view)
		}
	}
}
