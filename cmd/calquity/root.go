// ABOUTME: Root cobra command: persistent flags, config loading, and logger/tracing lifecycle.
// ABOUTME: Every subcommand receives the shared app after PersistentPreRunE has prepared it.
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2389-research/calquity/config"
	"github.com/2389-research/calquity/logging"
	"github.com/2389-research/calquity/tracing"
)

// quietConsole marks commands that own the terminal, so logs go only to the file.
const quietConsole = "quiet-console"

type rootFlags struct {
	configPath string
	apiURL     string
	verbose    bool
}

// app is the state shared by all subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer

	syncLog     func() error
	stopTracing tracing.Shutdown
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: zap.NewNop()}
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "calquity",
		Short: "Ask questions about your documents and get cited answers with charts",
		Long: `calquity streams answers from a document Q&A backend, tracks the
citations behind them, and turns each answer into a chart, table, or card.

Quick Start:
  calquity chat                         # interactive terminal chat
  calquity ask "How did revenue change?" # one question, printed to stdout
  calquity serve                        # host the visualization endpoint`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), flags, cmd.Annotations[quietConsole] == "true")
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&flags.apiURL, "api-url", "", "Document Q&A backend base URL")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newServeCmd(a),
		newStatusCmd(a),
		newDocsCmd(a),
		newAuditCmd(a),
	)
	return cmd
}

func (a *app) setup(ctx context.Context, flags rootFlags, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	console := a.errOut
	if quiet {
		console = io.Discard
	}
	a.logger, a.syncLog = logging.New(logging.Options{File: cfg.LogFile, Verbose: cfg.Verbose, Console: console})

	a.stopTracing, err = tracing.Init(ctx, cfg.Tracing.Enabled, cfg.Tracing.Endpoint, a.logger)
	if err != nil {
		a.logger.Warn("action=tracing_init outcome=error", zap.Error(err))
	}
	return nil
}

func (a *app) teardown() error {
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stopTracing(ctx); err != nil {
			a.logger.Warn("action=tracing_shutdown outcome=error", zap.Error(err))
		}
	}
	if a.syncLog != nil {
		return a.syncLog()
	}
	return nil
}
