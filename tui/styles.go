// ABOUTME: Defines lipgloss styles for the chat layout, message kinds, and streaming phases.
// ABOUTME: Provides StyleForPhase to map conversation phases to status colors.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/calquity/conversation"
)

var (
	// Message labels
	UserStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	AssistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	ProgressStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	CitationStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	NoticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Phase colors
	IdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ProcessingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	StreamingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	GeneratingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// StyleForPhase returns the status color for a phase.
func StyleForPhase(p conversation.Phase) lipgloss.Style {
	switch p {
	case conversation.PhaseProcessing:
		return ProcessingStyle
	case conversation.PhaseStreaming:
		return StreamingStyle
	case conversation.PhaseGeneratingVisualization:
		return GeneratingStyle
	default:
		return IdleStyle
	}
}
