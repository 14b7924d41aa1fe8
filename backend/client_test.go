// ABOUTME: Tests for the backend client and the remote generation client against httptest servers.
// ABOUTME: Covers job creation failures, status lookups, the page image cache, and spec decoding.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/calquity/citation"
	"github.com/2389-research/calquity/generate"
	"github.com/2389-research/calquity/viz"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateJob(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ask", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What was Q3 revenue?", body["query"])
		writeJSON(w, http.StatusOK, map[string]string{"job_id": "job-42", "status": "pending", "message": "Job created"})
	})

	job, err := NewClient(srv.URL+"/", WithHTTPClient(srv.Client())).CreateJob(context.Background(), "What was Q3 revenue?")
	require.NoError(t, err)
	assert.Equal(t, JobResponse{JobID: "job-42", Status: "pending", Message: "Job created"}, job)
}

func TestCreateJobFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantText   string
	}{
		{
			name: "rejected query",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Query cant be empty"})
			},
			wantStatus: http.StatusBadRequest,
			wantText:   "Query cant be empty",
		},
		{
			name: "server error text",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantStatus: http.StatusInternalServerError,
			wantText:   "boom",
		},
		{
			name: "missing job id",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
			},
			wantStatus: http.StatusOK,
			wantText:   "job_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.handler)
			_, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).CreateJob(context.Background(), "q")
			var jerr *JobCreationError
			require.True(t, errors.As(err, &jerr))
			assert.Equal(t, tt.wantStatus, jerr.StatusCode)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestCreateJobUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, WithTimeouts(time.Second, 0)).CreateJob(context.Background(), "q")
	var jerr *JobCreationError
	require.True(t, errors.As(err, &jerr))
	assert.Zero(t, jerr.StatusCode)
}

func TestJobStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ask/job-42" {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id": "job-42", "status": "completed", "query": "q", "created_at": "2026-10-16T09:00:00",
		})
	})
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	st, err := c.JobStatus(context.Background(), "job-42")
	require.NoError(t, err)
	assert.Equal(t, "completed", st.Status)
	assert.Nil(t, st.Error)

	_, err = c.JobStatus(context.Background(), "nope")
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.Equal(t, "Job not found", serr.Detail)
}

func TestDocuments(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/documents", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"documents": []string{"a.pdf", "b.pdf"}, "count": 2})
	})
	docs, err := NewClient(srv.URL, WithHTTPClient(srv.Client())).Documents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, docs)
}

func TestPageImageIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/upload/pdf/annual report.pdf/screenshot", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]string{"image": "cGFnZQ=="})
	})
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	for range 3 {
		img, err := c.PageImage(context.Background(), "annual report.pdf", 4)
		require.NoError(t, err)
		assert.Equal(t, "cGFnZQ==", img)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestPageImageErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "render failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"image": "b2s="})
	})
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := c.PageImage(context.Background(), "a.pdf", 1)
	require.Error(t, err)
	img, err := c.PageImage(context.Background(), "a.pdf", 1)
	require.NoError(t, err)
	assert.Equal(t, "b2s=", img)
}

func TestGenerationClient(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req generate.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Query {
		case "":
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing query or context"})
		case "fail":
			writeJSON(w, http.StatusOK, map[string]string{"error": "model offline"})
		default:
			assert.Equal(t, "aW1n", req.ImageBase64)
			assert.Len(t, req.Citations, 1)
			writeJSON(w, http.StatusOK, map[string]any{
				"component": "MetricCard",
				"props":     map[string]string{"title": "Growth", "value": "15%"},
			})
		}
	})
	gc := NewGenerationClient(srv.URL, srv.Client(), nil, 0)

	res, err := gc.Generate(context.Background(), generate.Request{
		Query:       "growth?",
		Context:     "grew 15%",
		ImageBase64: "aW1n",
		Citations:   []citation.Citation{{Number: 1, Source: "a.pdf", Page: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, viz.Of(viz.MetricCard{Title: "Growth", Value: "15%"}), res.Spec)
	assert.Equal(t, generate.StageRemote, res.Stage)

	_, err = gc.Generate(context.Background(), generate.Request{Context: "x"})
	assert.ErrorIs(t, err, generate.ErrMissingInput)

	_, err = gc.Generate(context.Background(), generate.Request{Query: "fail", Context: "x"})
	assert.ErrorContains(t, err, "model offline")
}
