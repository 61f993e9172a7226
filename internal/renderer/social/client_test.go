package social

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

func testAccount() config.Publish {
	return config.Publish{AccountID: "acct-1", AccessToken: "secret"}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.Renderer{}, testAccount(), WithBaseURL(server.URL))
}

func TestSubmitValidation(t *testing.T) {
	client := New(config.Renderer{BaseURL: "http://localhost:9"}, config.Publish{})
	_, err := client.Submit(context.Background(), renderer.Request{ProjectID: "p", VideoPath: "v.mp4"})
	if !errors.Is(err, renderer.ErrValidation) {
		t.Fatalf("missing account = %v, want ErrValidation", err)
	}

	client = New(config.Renderer{BaseURL: "http://localhost:9"}, testAccount())
	_, err = client.Submit(context.Background(), renderer.Request{ProjectID: "p"})
	if !errors.Is(err, renderer.ErrValidation) {
		t.Fatalf("missing video = %v, want ErrValidation", err)
	}
}

func TestSubmit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "secret" {
			t.Errorf("access token header missing")
		}
		var payload submitRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		if payload.AccountID != "acct-1" || payload.Caption != "New mug just dropped" {
			t.Errorf("payload = %+v", payload)
		}
		_ = json.NewEncoder(w).Encode(submitResponse{JobID: "post-5"})
	}))

	jobID, err := client.Submit(context.Background(), renderer.Request{
		ProjectID: "proj-1",
		VideoPath: "https://cdn.example/v.mp4",
		Caption:   "New mug just dropped",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "post-5" {
		t.Fatalf("job id = %q", jobID)
	}
}

func TestPollPublished(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/posts/pending":
			_ = json.NewEncoder(w).Encode(jobResponse{Status: "publishing"})
		case "/v1/posts/live":
			_ = json.NewEncoder(w).Encode(jobResponse{
				Status:    "published",
				PostID:    "18273645",
				Permalink: "https://instagram.com/p/abc",
			})
		case "/v1/posts/rejected":
			_ = json.NewEncoder(w).Encode(jobResponse{Status: "failed", Error: "media rejected"})
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()
	out, err := client.Poll(ctx, "pending")
	if err != nil || out.State != renderer.StateRunning {
		t.Fatalf("pending poll = %+v, %v", out, err)
	}

	out, err = client.Poll(ctx, "live")
	if err != nil || out.State != renderer.StateSucceeded {
		t.Fatalf("live poll = %+v, %v", out, err)
	}
	if out.Artifact.PostID != "18273645" || out.Artifact.PublishURL != "https://instagram.com/p/abc" {
		t.Fatalf("artifact = %+v", out.Artifact)
	}

	out, err = client.Poll(ctx, "rejected")
	if err != nil || out.State != renderer.StateFailed || out.Reason != "media rejected" {
		t.Fatalf("rejected poll = %+v, %v", out, err)
	}

	if _, err := client.Poll(ctx, "ghost"); !errors.Is(err, renderer.ErrNotFound) {
		t.Fatalf("ghost poll = %v, want ErrNotFound", err)
	}
}
