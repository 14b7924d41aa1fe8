// ABOUTME: The ask command: one question streamed to stdout, followed by its citations and visualization.
// ABOUTME: Renders from machine snapshots, printing only what is new since the previous one.
package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389-research/calquity/conversation"
	"github.com/2389-research/calquity/viz"
)

func newAskCmd(a *app) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask one question and print the answer and its visualization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.ask(ctx, strings.Join(args, " "), width)
		},
	}
	cmd.Flags().IntVar(&width, "width", 80, "Render width for the visualization")
	return cmd
}

func (a *app) ask(ctx context.Context, query string, width int) error {
	m, cleanup, err := a.machine(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	snapshots := m.Subscribe()
	if err := m.Submit(ctx, query); err != nil {
		return err
	}

	var p answerPrinter
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-snapshots:
			if !ok {
				return nil
			}
			p.print(a.out, s)
			// The user message is the first thing a turn records, so an idle
			// snapshot carrying it marks the end of the turn.
			if s.Phase.Busy() || len(s.Messages) == 0 {
				continue
			}
			if s.Error != "" {
				return fmt.Errorf("turn failed: %s", s.Error)
			}
			return p.finish(a.out, s, width)
		}
	}
}

// answerPrinter remembers how much of the conversation it has written.
type answerPrinter struct {
	// next indexes the first message not yet examined.
	next int
	// written counts bytes of the answer already printed.
	written int
}

func (p *answerPrinter) print(w io.Writer, s conversation.State) {
	for ; p.next < len(s.Messages); p.next++ {
		if msg := s.Messages[p.next]; msg.Kind == conversation.KindToolProgress {
			fmt.Fprintf(w, "… %s\n", msg.Content)
		}
	}
	if answer := s.LastAnswer(); len(answer) > p.written {
		fmt.Fprint(w, answer[p.written:])
		p.written = len(answer)
	}
}

func (p *answerPrinter) finish(w io.Writer, s conversation.State, width int) error {
	if p.written > 0 {
		fmt.Fprintln(w)
	}
	if len(s.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, c := range s.Citations {
			fmt.Fprintf(w, "  %s\n", c.String())
		}
	}
	spec, ok := s.LastVisualization()
	if !ok {
		return nil
	}
	out, err := viz.Render(spec, width)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", out)
	return nil
}
