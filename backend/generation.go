// ABOUTME: Client for a remote visualization generation endpoint (POST {query, context, imageBase64, citations}).
// ABOUTME: Satisfies the same Generate contract as the in-process pipeline.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/2389-research/calquity/generate"
	"github.com/2389-research/calquity/viz"
)

// DefaultGenerationTimeout bounds one remote generation call.
const DefaultGenerationTimeout = 60 * time.Second

// GenerationClient posts generation requests to a remote endpoint.
type GenerationClient struct {
	url     string
	http    *http.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewGenerationClient returns a client for the endpoint at url. A zero
// timeout uses DefaultGenerationTimeout.
func NewGenerationClient(url string, hc *http.Client, logger *zap.Logger, timeout time.Duration) *GenerationClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &GenerationClient{
		url:     url,
		http:    hc,
		logger:  logger.With(zap.String("component", "generation_client")),
		timeout: timeout,
	}
}

// Generate posts req and decodes the returned spec envelope. A 400 maps to
// generate.ErrMissingInput.
func (g *GenerationClient) Generate(ctx context.Context, req generate.Request) (generate.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return generate.Result{}, err
	}
	var raw json.RawMessage
	status, err := doJSON(ctx, g.http, http.MethodPost, g.url, body, &raw)
	if err != nil {
		if status == http.StatusBadRequest {
			return generate.Result{}, fmt.Errorf("%w: %v", generate.ErrMissingInput, err)
		}
		return generate.Result{}, fmt.Errorf("generation endpoint: %w", err)
	}

	var failure struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
		return generate.Result{}, fmt.Errorf("generation endpoint: %s", failure.Error)
	}

	res := viz.Decode(raw)
	if res.Err != nil {
		return generate.Result{}, fmt.Errorf("generation endpoint: %w", res.Err)
	}
	if res.Spec.IsZero() {
		return generate.Result{}, errors.New("generation endpoint: empty spec")
	}
	g.logger.Debug("action=generate", zap.String("kind", string(res.Spec.Kind())))
	return generate.Result{Spec: res.Spec, Stage: generate.StageRemote}, nil
}
