// ABOUTME: Top-level Bubble Tea ChatModel: a scrolling conversation, a prompt line, and a status bar.
// ABOUTME: Implements tea.Model (Init, Update, View) and routes keys and commands to the conversation machine.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/calquity/conversation"
	"github.com/2389-research/calquity/viz"
)

const tickInterval = time.Second

// ChatModel is the top-level Bubble Tea model for an interactive conversation.
type ChatModel struct {
	input     textinput.Model
	viewport  viewport.Model
	statusBar StatusBarModel

	ctrl Controller
	ctx  context.Context

	state  conversation.State
	notice string
	width  int
	height int
}

// NewChatModel creates a ChatModel driving ctrl. ctx bounds every turn.
func NewChatModel(ctx context.Context, ctrl Controller) ChatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents (:open N, :export FILE)"
	ti.Focus()

	return ChatModel{
		input:     ti,
		viewport:  viewport.New(80, 10),
		statusBar: NewStatusBarModel(),
		ctrl:      ctrl,
		ctx:       ctx,
		state:     ctrl.Snapshot(),
	}
}

// Init implements tea.Model.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, TickCmd(tickInterval))
}

// Update implements tea.Model.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case SubmitResultMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("could not ask %q: %v", msg.Query, msg.Err)
		}
		return m, nil

	case ExportResultMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
		} else {
			m.notice = "transcript written to " + msg.Path
		}
		return m, nil

	case NavigatedMsg:
		m.notice = fmt.Sprintf("%s p.%d: %s", msg.Source, msg.Page, msg.Excerpt)
		return m, nil

	case TickMsg:
		return m, TickCmd(tickInterval)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m ChatModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(NoticeStyle.Render(m.notice))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

func (m ChatModel) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// notice, prompt, and status bar take one line each
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	m.input.Width = m.width - lipgloss.Width(m.input.Prompt) - 1
	m.statusBar.SetWidth(m.width)
	m.refresh()
	return m, nil
}

// handleSnapshot drops snapshots older than the one on screen.
func (m ChatModel) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	if msg.State.Version < m.state.Version {
		return m, nil
	}
	m.state = msg.State
	m.statusBar.SetState(msg.State)
	m.refresh()
	return m, nil
}

func (m ChatModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+r":
		m.ctrl.Reset()
		m.notice = "conversation reset"
		return m, nil
	case "enter":
		return m.handleEnter()
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) handleEnter() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, ":") {
		return m.runCommand(text)
	}
	if m.state.Phase.Busy() {
		m.notice = "a turn is already in progress"
		return m, nil
	}
	m.notice = ""
	return m, SubmitCmd(m.ctx, m.ctrl, text)
}

// runCommand handles ":open N" and ":export FILE".
func (m ChatModel) runCommand(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(text, ":"))
	if len(fields) == 0 {
		m.notice = "empty command"
		return m, nil
	}

	switch fields[0] {
	case "open":
		if len(fields) != 2 {
			m.notice = "usage: :open N"
			return m, nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			m.notice = fmt.Sprintf("not a citation number: %q", fields[1])
			return m, nil
		}
		if err := m.ctrl.NavigateTo(n); err != nil {
			m.notice = err.Error()
		}
		return m, nil

	case "export":
		if len(fields) != 2 {
			m.notice = "usage: :export FILE"
			return m, nil
		}
		return m, ExportCmd(fields[1], m.state)

	default:
		m.notice = fmt.Sprintf("unknown command %q", fields[0])
		return m, nil
	}
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(renderConversation(m.state, m.viewport.Width))
	m.viewport.GotoBottom()
}

// renderConversation lays out every message of s for a terminal of width cells.
func renderConversation(s conversation.State, width int) string {
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width)

	var blocks []string
	for _, msg := range s.Messages {
		switch msg.Kind {
		case conversation.KindUserText:
			blocks = append(blocks, wrap.Render(UserStyle.Render("You: ")+msg.Content))
		case conversation.KindToolProgress:
			blocks = append(blocks, ProgressStyle.Render("… "+msg.Content))
		case conversation.KindAIText:
			blocks = append(blocks, renderAnswer(msg, wrap))
		case conversation.KindVisualization:
			blocks = append(blocks, renderVisualization(msg, width))
		}
	}

	switch s.Phase {
	case conversation.PhaseProcessing:
		blocks = append(blocks, ProgressStyle.Render("thinking…"))
	case conversation.PhaseGeneratingVisualization:
		blocks = append(blocks, ProgressStyle.Render("generating visualization…"))
	}
	if s.Error != "" {
		blocks = append(blocks, ErrorStyle.Render("Error: "+s.Error))
	}
	return strings.Join(blocks, "\n\n")
}

func renderAnswer(msg conversation.ChatMessage, wrap lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(AssistantStyle.Render("Assistant"))
	b.WriteString("\n")
	b.WriteString(wrap.Render(msg.Content))
	for _, c := range msg.Citations {
		b.WriteString("\n")
		b.WriteString(CitationStyle.Render(wrap.Render(c.String())))
	}
	return b.String()
}

func renderVisualization(msg conversation.ChatMessage, width int) string {
	if msg.Visualization == nil {
		return ""
	}
	out, err := viz.Render(*msg.Visualization, width)
	if err != nil {
		return ErrorStyle.Render(err.Error())
	}
	return out
}
