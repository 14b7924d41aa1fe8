// ABOUTME: Three-stage visualization pipeline: vision generator, text generator, fixed default card.
// ABOUTME: Each stage output is extracted, decoded, and validated as a viz.Result; the first Ok wins.

package generate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/viz"
)

// ErrMissingInput is returned when a request lacks a query or context.
var ErrMissingInput = errors.New("missing query or context")

// Stage names one step of the pipeline.
type Stage string

const (
	StageVision  Stage = "vision"
	StageText    Stage = "text"
	StageDefault Stage = "default"
	// StageRemote marks a spec produced by a remote generation endpoint.
	StageRemote Stage = "remote"
)

// Request is the input to one pipeline run.
type Request struct {
	Query       string              `json:"query"`
	Context     string              `json:"context"`
	ImageBase64 string              `json:"imageBase64,omitempty"`
	Citations   []citation.Citation `json:"citations,omitempty"`
}

// Attempt records one stage's outcome.
type Attempt struct {
	Stage     Stage
	RawOutput string
	Parsed    *viz.Spec
	Valid     bool
	Reason    string
	Duration  time.Duration
}

// Result is the accepted spec plus every attempt made to get it.
type Result struct {
	RunID    string
	Spec     viz.Spec
	Stage    Stage
	Attempts []Attempt
}

// Prompt is what a Generator is asked to complete.
type Prompt struct {
	System      string
	User        string
	ImageBase64 string
	Temperature *float64
}

// Generator produces raw text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Recorder receives every attempt of every run.
type Recorder interface {
	Record(ctx context.Context, runID, query string, a Attempt) error
}

// NopRecorder discards attempts.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, Attempt) error { return nil }

// Pipeline runs the stages in order. A nil Vision or Text generator skips
// that stage.
type Pipeline struct {
	Vision   Generator
	Text     Generator
	Recorder Recorder
	Logger   *zap.Logger
}

var tracer = otel.Tracer("github.com/2389-research/calquity/generate")

// Generate always yields a spec unless the input is missing or ctx ends.
func (p *Pipeline) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.Context) == "" {
		return Result{}, ErrMissingInput
	}
	logger := p.logger()
	run := &run{
		pipeline: p,
		req:      req,
		out:      Result{RunID: uuid.NewString()},
		logger:   logger,
	}

	ctx, span := tracer.Start(ctx, "generate.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", run.out.RunID), attribute.Bool("image", req.ImageBase64 != ""))

	res := run.vision(ctx).
		Or(func() viz.Result { return run.text(ctx) })
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return run.out, err
	}
	res = res.Or(func() viz.Result { return run.fallback(ctx) })

	run.out.Spec = res.Spec
	span.SetAttributes(attribute.String("stage", string(run.out.Stage)), attribute.String("kind", string(res.Spec.Kind())))
	logger.Info("action=generate",
		zap.String("run_id", run.out.RunID),
		zap.String("stage", string(run.out.Stage)),
		zap.String("kind", string(res.Spec.Kind())),
		zap.Int("attempts", len(run.out.Attempts)))
	return run.out, nil
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger.With(zap.String("component", "generate"))
}

func (p *Pipeline) recorder() Recorder {
	if p.Recorder == nil {
		return NopRecorder{}
	}
	return p.Recorder
}

// run carries one Generate call's state across stages.
type run struct {
	pipeline *Pipeline
	req      Request
	out      Result
	logger   *zap.Logger
}

func (r *run) vision(ctx context.Context) viz.Result {
	if r.req.ImageBase64 == "" || r.pipeline.Vision == nil {
		return viz.Err(errSkipped)
	}
	return r.stage(ctx, StageVision, r.pipeline.Vision, Prompt{
		User:        VisionPrompt(r.req.Query),
		ImageBase64: r.req.ImageBase64,
	})
}

func (r *run) text(ctx context.Context) viz.Result {
	if r.pipeline.Text == nil || ctx.Err() != nil {
		return viz.Err(errSkipped)
	}
	temp := TextTemperature
	return r.stage(ctx, StageText, r.pipeline.Text, Prompt{
		System:      SystemPrompt(),
		User:        TextPrompt(r.req.Query, r.req.Context, r.req.Citations),
		Temperature: &temp,
	})
}

func (r *run) fallback(ctx context.Context) viz.Result {
	spec := viz.DefaultCard()
	r.finish(ctx, Attempt{Stage: StageDefault, Parsed: &spec, Valid: true})
	return viz.Ok(spec)
}

var errSkipped = errors.New("stage skipped")

// stage runs one generator and folds its output through extract, decode, and
// validate.
func (r *run) stage(ctx context.Context, stage Stage, gen Generator, prompt Prompt) viz.Result {
	ctx, span := tracer.Start(ctx, "generate.stage."+string(stage))
	defer span.End()

	start := time.Now()
	raw, err := gen.Generate(ctx, prompt)
	a := Attempt{Stage: stage, RawOutput: raw, Duration: time.Since(start)}

	var res viz.Result
	if err != nil {
		res = viz.Err(err)
	} else {
		res = viz.Parse(raw)
	}
	if res.OK() {
		spec := res.Spec
		a.Parsed = &spec
		a.Valid = true
	} else {
		a.Reason = res.Err.Error()
		span.SetStatus(codes.Error, a.Reason)
		r.logger.Warn("action=stage outcome=rejected",
			zap.String("run_id", r.out.RunID),
			zap.String("stage", string(stage)),
			zap.String("reason", a.Reason))
	}
	r.finish(ctx, a)
	return res
}

func (r *run) finish(ctx context.Context, a Attempt) {
	r.out.Attempts = append(r.out.Attempts, a)
	if a.Valid {
		r.out.Stage = a.Stage
	}
	if err := r.pipeline.recorder().Record(context.WithoutCancel(ctx), r.out.RunID, r.req.Query, a); err != nil {
		r.logger.Warn("action=record outcome=error", zap.String("run_id", r.out.RunID), zap.Error(err))
	}
}
