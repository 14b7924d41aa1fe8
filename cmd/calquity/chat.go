// ABOUTME: The chat command: the interactive Bubble Tea conversation.
// ABOUTME: Machine snapshots and citation navigation reach the program through a SnapshotBridge.
package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/calquity/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "chat",
		Short:       "Start an interactive chat about your documents",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{quietConsole: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.chat(cmd.Context())
		},
	}
}

func (a *app) chat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The program does not exist until the model does, and the model needs
	// the machine; navigation only happens once the program is running.
	var program *tea.Program
	bridge := tui.NewSnapshotBridge(func(msg tea.Msg) { program.Send(msg) })

	m, cleanup, err := a.machine(ctx, bridge.Navigator())
	if err != nil {
		return err
	}
	snapshots := m.Subscribe()

	program = tea.NewProgram(tui.NewChatModel(ctx, m),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(a.out),
	)
	go bridge.Forward(snapshots)

	_, runErr := program.Run()
	cancel()
	cleanup()
	if runErr != nil {
		return fmt.Errorf("chat: %w", runErr)
	}
	return nil
}
