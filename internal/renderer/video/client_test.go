package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"adforge/internal/config"
	"adforge/internal/renderer"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.Renderer{APIKey: "test-key"}, WithBaseURL(server.URL))
}

func TestSubmit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization header = %q", auth)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["style"] != "cinematic" {
			t.Errorf("style = %v", payload["style"])
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "vid-123"})
	}))

	jobID, err := client.Submit(context.Background(), renderer.Request{
		ProjectID:        "proj-1",
		Script:           "script",
		ProductImagePath: "/uploads/p.png",
		PersonMediaPath:  "/uploads/m.mp4",
		VideoStyle:       "cinematic",
		VideoLayout:      "product_main",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "vid-123" {
		t.Fatalf("job id = %q", jobID)
	}
}

func TestSubmitServiceError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	_, err := client.Submit(context.Background(), renderer.Request{ProjectID: "proj-1"})
	if !errors.Is(err, renderer.ErrExternalService) {
		t.Fatalf("submit error = %v, want ErrExternalService", err)
	}
}

func TestSubmitUnreachable(t *testing.T) {
	client := New(config.Renderer{}, WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Submit(context.Background(), renderer.Request{ProjectID: "proj-1"})
	if !errors.Is(err, renderer.ErrExternalService) {
		t.Fatalf("submit error = %v, want ErrExternalService", err)
	}
}

func TestPollStates(t *testing.T) {
	responses := map[string]jobResponse{
		"running":  {Status: "running"},
		"done":     {Status: "succeeded", VideoURL: "https://cdn.example/v.mp4"},
		"failed":   {Status: "failed", Error: "render crashed"},
		"hollow":   {Status: "succeeded"},
		"canceled": {Status: "canceled"},
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/jobs/"):]
		resp, ok := responses[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))

	ctx := context.Background()

	out, err := client.Poll(ctx, "running")
	if err != nil || out.State != renderer.StateRunning {
		t.Fatalf("running poll = %+v, %v", out, err)
	}

	out, err = client.Poll(ctx, "done")
	if err != nil || out.State != renderer.StateSucceeded || out.Artifact.VideoPath != "https://cdn.example/v.mp4" {
		t.Fatalf("succeeded poll = %+v, %v", out, err)
	}

	out, err = client.Poll(ctx, "failed")
	if err != nil || out.State != renderer.StateFailed || out.Reason != "render crashed" {
		t.Fatalf("failed poll = %+v, %v", out, err)
	}

	// Success without an artifact is treated as failure, not trusted blindly.
	out, err = client.Poll(ctx, "hollow")
	if err != nil || out.State != renderer.StateFailed {
		t.Fatalf("hollow poll = %+v, %v", out, err)
	}

	out, err = client.Poll(ctx, "canceled")
	if err != nil || out.State != renderer.StateFailed {
		t.Fatalf("canceled poll = %+v, %v", out, err)
	}

	if _, err = client.Poll(ctx, "ghost"); !errors.Is(err, renderer.ErrNotFound) {
		t.Fatalf("unknown job poll = %v, want ErrNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path == "/v1/jobs/ghost" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Cancel(context.Background(), "vid-123"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Cancelling a job the service already forgot is fine.
	if err := client.Cancel(context.Background(), "ghost"); err != nil {
		t.Fatalf("cancel unknown: %v", err)
	}
}
