// ABOUTME: Tests for the chat TUI style helpers.
// ABOUTME: Verifies StyleForPhase maps every phase to its status color.
package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/calquity/conversation"
)

func TestStyleForPhase(t *testing.T) {
	tests := []struct {
		phase conversation.Phase
		want  lipgloss.Style
	}{
		{conversation.PhaseIdle, IdleStyle},
		{conversation.PhaseProcessing, ProcessingStyle},
		{conversation.PhaseStreaming, StreamingStyle},
		{conversation.PhaseGeneratingVisualization, GeneratingStyle},
		{conversation.Phase("bogus"), IdleStyle},
	}
	for _, tt := range tests {
		got := StyleForPhase(tt.phase)
		if got.GetForeground() != tt.want.GetForeground() {
			t.Errorf("StyleForPhase(%q) foreground = %v, want %v", tt.phase, got.GetForeground(), tt.want.GetForeground())
		}
	}
}
