// ABOUTME: Builds the runtime graph from config: backend clients, LLM providers, pipeline, and the machine.
// ABOUTME: Generation runs in process unless a remote generation URL is configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/2389-research/calquity/backend"
	"github.com/2389-research/calquity/config"
	"github.com/2389-research/calquity/conversation"
	"github.com/2389-research/calquity/fallback"
	"github.com/2389-research/calquity/generate"
	"github.com/2389-research/calquity/llm"
	"github.com/2389-research/calquity/store"
	"github.com/2389-research/calquity/stream"
)

const (
	visionProvider = "vision"
	textProvider   = "text"
	maxTokens      = 2048
)

func (a *app) backendClient() *backend.Client {
	return backend.NewClient(a.cfg.APIURL,
		backend.WithLogger(a.logger),
		backend.WithTimeouts(a.cfg.JobTimeout, a.cfg.ImageTimeout),
		backend.WithImageTTL(a.cfg.ImageCacheTTL),
	)
}

// textAdapter picks the adapter for the configured text provider.
func textAdapter(ctx context.Context, cfg config.Config) (llm.ProviderAdapter, error) {
	key := cfg.TextKey()
	switch strings.ToLower(cfg.Text.Provider) {
	case config.ProviderAnthropic:
		return llm.NewAnthropicMuxAdapter(key, cfg.Text.Model), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIMuxAdapter(key, cfg.Text.Model), nil
	case config.ProviderGemini:
		return llm.NewGeminiMuxAdapter(ctx, key, cfg.Text.Model)
	default:
		return llm.NewOpenAICompatAdapter(key, cfg.Text.Model, groqOptions(cfg)...), nil
	}
}

func groqOptions(cfg config.Config, extra ...llm.OpenAICompatOption) []llm.OpenAICompatOption {
	var opts []llm.OpenAICompatOption
	if cfg.GroqBaseURL != "" {
		opts = append(opts, llm.WithCompatBaseURL(cfg.GroqBaseURL))
	}
	return append(opts, extra...)
}

// pipeline assembles the in-process generation pipeline. A stage whose
// provider has no credential is left out.
func (a *app) pipeline(ctx context.Context, rec generate.Recorder) (*generate.Pipeline, func() error, error) {
	opts := []llm.ClientOption{
		llm.WithMiddleware(
			llm.LoggingMiddleware(a.logger),
			llm.TimeoutMiddleware(a.cfg.GenerationTimeout),
			llm.RetryMiddleware(llm.DefaultRetryPolicy()),
		),
	}

	p := &generate.Pipeline{Recorder: rec, Logger: a.logger}
	if a.cfg.Keys.Groq != "" {
		adapter := llm.NewOpenAICompatAdapter(a.cfg.Keys.Groq, a.cfg.Vision.Model,
			groqOptions(a.cfg, llm.WithVision(), llm.WithCompatName("groq-vision"))...)
		opts = append(opts, llm.WithProvider(visionProvider, adapter))
	} else {
		a.logger.Warn("action=pipeline_build outcome=no_vision_stage", zap.String("reason", "GROQ_API_KEY not set"))
	}

	if a.cfg.TextKey() != "" {
		adapter, err := textAdapter(ctx, a.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("text provider: %w", err)
		}
		opts = append(opts, llm.WithProvider(textProvider, adapter))
	} else {
		a.logger.Warn("action=pipeline_build outcome=no_text_stage",
			zap.String("provider", a.cfg.Text.Provider), zap.String("reason", "no API key"))
	}

	client := llm.NewClient(opts...)
	if _, err := client.Provider(visionProvider); err == nil {
		p.Vision = &generate.LLMGenerator{Client: client, Provider: visionProvider, Model: a.cfg.Vision.Model, MaxTokens: maxTokens}
	}
	if _, err := client.Provider(textProvider); err == nil {
		p.Text = &generate.LLMGenerator{Client: client, Provider: textProvider, Model: a.cfg.Text.Model, MaxTokens: maxTokens}
	}
	return p, client.Close, nil
}

// openAudit opens the attempt store at the configured or default path.
func (a *app) openAudit() (*store.AttemptStore, error) {
	path, err := resolveAuditPath(a.cfg.AuditDB)
	if err != nil {
		return nil, err
	}
	return store.OpenSqlite(path)
}

// generator returns what the fallback orchestrator calls: the remote endpoint
// when configured, otherwise an audited in-process pipeline.
func (a *app) generator(ctx context.Context) (fallback.Pipeline, func() error, error) {
	if a.cfg.GenerateURL != "" {
		gc := backend.NewGenerationClient(a.cfg.GenerateURL, nil, a.logger, a.cfg.GenerationTimeout)
		return gc, func() error { return nil }, nil
	}

	audit, err := a.openAudit()
	if err != nil {
		return nil, nil, err
	}
	p, closeLLM, err := a.pipeline(ctx, audit)
	if err != nil {
		_ = audit.Close()
		return nil, nil, err
	}
	return p, func() error { return errors.Join(closeLLM(), audit.Close()) }, nil
}

// machine wires a conversation machine to the configured backend. The
// returned cleanup closes the machine and everything it owns.
func (a *app) machine(ctx context.Context, nav conversation.Navigator) (*conversation.Machine, func(), error) {
	api := a.backendClient()
	gen, closeGen, err := a.generator(ctx)
	if err != nil {
		return nil, nil, err
	}

	orch := &fallback.Orchestrator{
		Images:     api,
		Pipeline:   gen,
		MaxContext: a.cfg.MaxContext,
		Logger:     a.logger,
	}
	streams := conversation.StreamClient(stream.NewClient(a.cfg.APIURL, nil, a.logger))

	opts := []conversation.Option{conversation.WithLogger(a.logger)}
	if nav != nil {
		opts = append(opts, conversation.WithNavigator(nav))
	}
	m := conversation.NewMachine(api, streams, orch, opts...)

	cleanup := func() {
		m.Close()
		if err := closeGen(); err != nil {
			a.logger.Warn("action=cleanup outcome=error", zap.Error(err))
		}
	}
	return m, cleanup, nil
}
