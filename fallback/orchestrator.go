// ABOUTME: Fallback orchestrator producing exactly one visualization for a turn that streamed none.
// ABOUTME: Fetches the first citation's page image, runs the generation pipeline, and defaults on failure.

package fallback

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/generate"
	"github.com/2389-research/calquity/viz"
)

// ImageFetcher renders a document page as base64 PNG.
type ImageFetcher interface {
	PageImage(ctx context.Context, source string, page int) (string, error)
}

// Pipeline turns a request into a visualization. Implemented in process by
// generate.Pipeline and remotely by backend.GenerationClient.
type Pipeline interface {
	Generate(ctx context.Context, req generate.Request) (generate.Result, error)
}

// Input is what the finished turn hands over.
type Input struct {
	Query     string
	Answer    string
	Citations []citation.Citation
	// Anchor is the citation whose page image grounds the vision stage.
	Anchor *citation.Citation
}

// NewInput snapshots the turn's tracker: every citation in arrival order,
// anchored on the first one.
func NewInput(query, answer string, tr *citation.Tracker) Input {
	in := Input{Query: query, Answer: answer, Citations: tr.All()}
	if first, ok := tr.First(); ok {
		in.Anchor = &first
	}
	return in
}

// Orchestrator runs the fallback steps strictly in sequence.
type Orchestrator struct {
	Images     ImageFetcher
	Pipeline   Pipeline
	MaxContext int
	Logger     *zap.Logger
}

var tracer = otel.Tracer("github.com/2389-research/calquity/fallback")

// Run always returns a spec: the pipeline's, or the default card.
func (o *Orchestrator) Run(ctx context.Context, in Input) viz.Spec {
	logger := zap.NewNop()
	if o.Logger != nil {
		logger = o.Logger.With(zap.String("component", "fallback"))
	}
	ctx, span := tracer.Start(ctx, "fallback.run")
	defer span.End()

	req := generate.Request{
		Query:     in.Query,
		Context:   generate.Truncate(in.Answer, o.maxContext()),
		Citations: in.Citations,
	}

	if in.Anchor != nil && o.Images != nil {
		anchor := in.Anchor
		img, err := o.Images.PageImage(ctx, anchor.Source, anchor.Page)
		if err != nil {
			logger.Warn("action=page_image outcome=error",
				zap.String("source", anchor.Source),
				zap.Int("page", anchor.Page),
				zap.Error(err))
		} else {
			req.ImageBase64 = img
		}
	}
	span.SetAttributes(attribute.Bool("image", req.ImageBase64 != ""))

	if o.Pipeline == nil {
		return viz.DefaultCard()
	}
	res, err := o.Pipeline.Generate(ctx, req)
	if err != nil || res.Spec.IsZero() {
		logger.Warn("action=generate outcome=default", zap.Error(err))
		return viz.DefaultCard()
	}
	span.SetAttributes(attribute.String("stage", string(res.Stage)), attribute.String("kind", string(res.Spec.Kind())))
	logger.Debug("action=generate outcome=ok",
		zap.String("stage", string(res.Stage)),
		zap.String("kind", string(res.Spec.Kind())))
	return res.Spec
}

func (o *Orchestrator) maxContext() int {
	if o.MaxContext <= 0 {
		return generate.MaxContext
	}
	return o.MaxContext
}
