// ABOUTME: HTTP client for the document Q&A backend: job creation, job status, documents, page images.
// ABOUTME: Page images are cached in-process with go-cache since a turn's anchor page is often re-requested.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Default per-call bounds.
const (
	DefaultJobTimeout   = 15 * time.Second
	DefaultImageTimeout = 15 * time.Second
	DefaultImageTTL     = 10 * time.Minute
)

// Client talks to the backend at one base URL.
type Client struct {
	baseURL      string
	http         *http.Client
	logger       *zap.Logger
	images       *cache.Cache
	jobTimeout   time.Duration
	imageTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeouts bounds job creation and page image calls. Zero keeps the default.
func WithTimeouts(job, image time.Duration) Option {
	return func(c *Client) {
		if job > 0 {
			c.jobTimeout = job
		}
		if image > 0 {
			c.imageTimeout = image
		}
	}
}

// WithImageTTL sets how long page images stay cached.
func WithImageTTL(ttl time.Duration) Option {
	return func(c *Client) { c.images = cache.New(ttl, 2*ttl) }
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         http.DefaultClient,
		logger:       zap.NewNop(),
		images:       cache.New(DefaultImageTTL, 2*DefaultImageTTL),
		jobTimeout:   DefaultJobTimeout,
		imageTimeout: DefaultImageTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "backend"))
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// JobResponse is returned by POST /ask.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CreateJob submits a query and returns the job that will stream its answer.
// Every failure is a *JobCreationError.
func (c *Client) CreateJob(ctx context.Context, query string) (JobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return JobResponse{}, &JobCreationError{Err: err}
	}
	var out JobResponse
	status, err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/ask", body, &out)
	if err != nil {
		return JobResponse{}, &JobCreationError{StatusCode: status, Err: err}
	}
	if out.JobID == "" {
		return JobResponse{}, &JobCreationError{StatusCode: status, Err: errEmptyJobID}
	}
	c.logger.Debug("action=create_job", zap.String("job_id", out.JobID))
	return out, nil
}

// StatusResponse is returned by GET /ask/{job_id}.
type StatusResponse struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Query     string  `json:"query"`
	CreatedAt string  `json:"created_at"`
	Error     *string `json:"error,omitempty"`
}

// JobStatus fetches the state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	var out StatusResponse
	if _, err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/ask/"+url.PathEscape(jobID), nil, &out); err != nil {
		return StatusResponse{}, fmt.Errorf("job status %s: %w", jobID, err)
	}
	return out, nil
}

// Documents lists the PDFs the backend has indexed.
func (c *Client) Documents(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	var out struct {
		Documents []string `json:"documents"`
	}
	if _, err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/upload/documents", nil, &out); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out.Documents, nil
}

// PageImage returns a base64 PNG of one page of source. Results are cached.
func (c *Client) PageImage(ctx context.Context, source string, page int) (string, error) {
	key := source + "#" + strconv.Itoa(page)
	if v, ok := c.images.Get(key); ok {
		return v.(string), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.imageTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/upload/pdf/%s/screenshot?page=%d", c.baseURL, url.PathEscape(source), page)
	var out struct {
		Image string `json:"image"`
	}
	if _, err := doJSON(ctx, c.http, http.MethodGet, u, nil, &out); err != nil {
		return "", fmt.Errorf("page image %s p.%d: %w", source, page, err)
	}
	if out.Image == "" {
		return "", fmt.Errorf("page image %s p.%d: empty image", source, page)
	}
	c.images.Set(key, out.Image, cache.DefaultExpiration)
	return out.Image, nil
}

// doJSON sends an optional JSON body and decodes a 2xx JSON response into out.
// It returns the HTTP status when one was received.
func doJSON(ctx context.Context, hc *http.Client, method, u string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, nil
}

// errorDetail pulls a message out of FastAPI-style {"detail"} or {"error"}
// bodies, falling back to the raw text.
func errorDetail(raw []byte) string {
	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
