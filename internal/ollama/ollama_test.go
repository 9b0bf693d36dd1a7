// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client whose backoff sleeps are recorded instead
// of slept.
func newTestClient(url string) (*Client, *[]time.Duration) {
	c := NewClient(ClientConfig{BaseURL: url, Timeout: 5 * time.Second})
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return c, &delays
}

func writeLines(w http.ResponseWriter, lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// =============================================================================
// MODEL MANAGEMENT
// =============================================================================

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"llama2:latest","size":3825819519},{"name":"mistral:latest","size":4109865159}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[1].Name != "mistral:latest" {
		t.Errorf("models[1].Name = %q, want %q", models[1].Name, "mistral:latest")
	}
	if got := models[0].FormatSize(); got != "3.6 GB" {
		t.Errorf("FormatSize() = %q, want %q", got, "3.6 GB")
	}
}

func TestDeleteModel(t *testing.T) {
	var gotName, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		var body nameRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotName = body.Name
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	if err := c.DeleteModel(context.Background(), "phi3:mini"); err != nil {
		t.Fatalf("DeleteModel() error = %v", err)
	}
	if gotMethod != http.MethodDelete || gotName != "phi3:mini" {
		t.Errorf("request = %s %q, want DELETE %q", gotMethod, gotName, "phi3:mini")
	}
}

func TestDeleteModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	err := c.DeleteModel(context.Background(), "nope")
	if !IsModelNotFound(err) {
		t.Fatalf("DeleteModel() error = %v, want model not found", err)
	}
	if !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestPullModelProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body nameRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "mistral:latest" || body.Stream == nil || !*body.Stream {
			t.Errorf("pull body = %+v", body)
		}
		writeLines(w,
			`{"status":"pulling manifest"}`,
			`{"status":"pulling abc","digest":"abc","total":1000,"completed":0}`,
			`{"status":"pulling abc","digest":"abc","total":1000,"completed":500}`,
			`{"status":"pulling abc","digest":"abc","total":1000,"completed":1000}`,
			`{"status":"success"}`,
		)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	var pcts []float64
	err := c.PullModel(context.Background(), "mistral:latest", func(p PullProgress) {
		pcts = append(pcts, p.Percent())
	})
	if err != nil {
		t.Fatalf("PullModel() error = %v", err)
	}
	want := []float64{-1, 0, 50, 100, 100}
	if fmt.Sprint(pcts) != fmt.Sprint(want) {
		t.Errorf("percents = %v, want %v", pcts, want)
	}
}

func TestPullModelErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		check func(error) bool
	}{
		{"server error line", []string{`{"status":"pulling manifest"}`, `{"error":"pull model manifest: file does not exist"}`},
			func(err error) bool { return strings.Contains(err.Error(), "file does not exist") }},
		{"ends early", []string{`{"status":"pulling manifest"}`}, IsProtocol},
		{"garbage", []string{`{"status":`, `oops`}, IsProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeLines(w, tt.lines...)
			}))
			defer srv.Close()

			c, _ := newTestClient(srv.URL)
			err := c.PullModel(context.Background(), "x", nil)
			if err == nil || !tt.check(err) {
				t.Errorf("PullModel() error = %v", err)
			}
		})
	}
}

// =============================================================================
// CHAT STREAMING
// =============================================================================

func TestOpenChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["stream"] != true {
			t.Errorf("stream = %v, want true", req["stream"])
		}
		opts, _ := req["options"].(map[string]any)
		if _, ok := opts["temperature"]; !ok {
			t.Errorf("options.temperature missing even though it is zero: %v", opts)
		}
		writeLines(w,
			`{"model":"llama2:latest","message":{"role":"assistant","content":"Hel"},"done":false}`,
			``,
			`{"model":"llama2:latest","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"llama2:latest","message":{"role":"assistant","content":" there"},"done":false}`,
			`{"model":"llama2:latest","message":{"role":"assistant","content":""},"done":true,"eval_count":3}`,
		)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	stream, err := c.OpenChatStream(context.Background(), ChatRequest{
		Model:    "llama2:latest",
		Messages: []Message{{Role: "user", Content: "Hello"}},
		Options:  &Options{Temperature: 0, TopK: 40},
	})
	if err != nil {
		t.Fatalf("OpenChatStream() error = %v", err)
	}
	defer stream.Close()

	var text strings.Builder
	var last ChatChunk
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		text.WriteString(chunk.Message.Content)
		last = chunk
	}
	if text.String() != "Hello there" {
		t.Errorf("text = %q, want %q", text.String(), "Hello there")
	}
	if !last.Done || last.EvalCount != 3 {
		t.Errorf("last chunk = %+v", last)
	}
}

func TestChatStreamMalformedLine(t *testing.T) {
	body := io.NopCloser(strings.NewReader("{\"message\":{\"content\":\"ok\"}}\nnot json\n"))
	s := NewChatStream(context.Background(), body)

	if _, err := s.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err := s.Next()
	if !IsProtocol(err) {
		t.Errorf("Next() error = %v, want protocol error", err)
	}
	if IsTransport(err) {
		t.Errorf("protocol error must not be a transport error")
	}
}

func TestChatStreamErrorField(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"error":"model requires more system memory"}` + "\n"))
	_, err := NewChatStream(context.Background(), body).Next()
	if !IsProtocol(err) || !strings.Contains(err.Error(), "more system memory") {
		t.Errorf("Next() error = %v", err)
	}
}

func TestChatStreamTruncated(t *testing.T) {
	body := io.NopCloser(strings.NewReader(`{"message":{"content":"par"},"done":false}`))
	s := NewChatStream(context.Background(), body)

	chunk, err := s.Next()
	if err != nil || chunk.Message.Content != "par" {
		t.Fatalf("Next() = %+v, %v", chunk, err)
	}
	_, err = s.Next()
	if !IsTransport(err) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Next() error = %v, want connection error wrapping ErrUnexpectedEOF", err)
	}
}

// =============================================================================
// RETRIES
// =============================================================================

func TestOpenChatStreamRetriesConnectionFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		writeLines(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	c, delays := newTestClient(srv.URL)
	stream, err := c.OpenChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("OpenChatStream() error = %v", err)
	}
	stream.Close()

	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}
	if fmt.Sprint(*delays) != fmt.Sprint(want) {
		t.Errorf("backoff delays = %v, want %v", *delays, want)
	}
}

func TestOpenChatStreamGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, delays := newTestClient(url)
	_, err := c.OpenChatStream(context.Background(), ChatRequest{Model: "m"})
	if !IsTransport(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if len(*delays) != 2 {
		t.Errorf("retries = %d, want 2 (3 attempts)", len(*delays))
	}
}

func TestHTTPStatusIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"ghost\" not found, try pulling it first"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.OpenChatStream(context.Background(), ChatRequest{Model: "ghost"})
	if !IsModelNotFound(err) {
		t.Errorf("error = %v, want model not found", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestBackoffIsCapped(t *testing.T) {
	c := NewClient(ClientConfig{RetryDelay: 250 * time.Millisecond, MaxRetryDelay: time.Second})
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := c.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffDefaultsWhenUnset(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://localhost:11434"})
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 2 * time.Second}
	for i, w := range want {
		if got := c.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestCheckRunningNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(url)
	if err := c.CheckRunning(context.Background()); !IsTransport(err) {
		t.Errorf("CheckRunning() error = %v, want transport error", err)
	}
}
