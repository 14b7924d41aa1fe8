// ABOUTME: The serve command: hosts the visualization generation endpoint.
// ABOUTME: Runs the in-process pipeline with the audit store as its recorder until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2389-research/calquity/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the visualization generation endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config: 127.0.0.1:8787)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	audit, err := a.openAudit()
	if err != nil {
		return err
	}
	defer func() { _ = audit.Close() }()

	p, closeLLM, err := a.pipeline(ctx, audit)
	if err != nil {
		return err
	}
	defer func() { _ = closeLLM() }()

	srv, err := web.NewServer(web.ServerConfig{
		Addr:        a.cfg.Listen,
		Generator:   p,
		VisionModel: a.cfg.Vision.Model,
		TextModel:   a.cfg.Text.Model,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	a.logger.Info("action=serve", zap.String("addr", srv.Addr()))
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
