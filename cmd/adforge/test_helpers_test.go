package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"adforge/internal/status"
)

func runCLI(t *testing.T, args []string, address string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if address != "" {
		args = append([]string{"--address", address}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// newStubDaemon serves canned API responses so command output can be
// exercised without a full daemon.
func newStubDaemon(t *testing.T, views ...status.ProjectView) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/status":
			byStage := make(map[string]int)
			inFlight := 0
			for _, view := range views {
				byStage[view.Stage]++
				if strings.HasSuffix(view.Stage, "generating") || view.Stage == "publishing" {
					inFlight++
				}
			}
			_ = json.NewEncoder(w).Encode(status.Overview{
				Total:    len(views),
				InFlight: inFlight,
				ByStage:  byStage,
			})
		case r.URL.Path == "/api/projects" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"projects": views})
		case strings.HasPrefix(r.URL.Path, "/api/projects/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/projects/")
			id = strings.TrimSuffix(id, "/cancel")
			for _, view := range views {
				if view.ID == id {
					if strings.HasSuffix(r.URL.Path, "/cancel") {
						view.Stage = "failed"
					}
					_ = json.NewEncoder(w).Encode(view)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "project not found"})
		case r.URL.Path == "/api/notifications/test":
			_ = json.NewEncoder(w).Encode(map[string]any{"sent": false, "message": "ntfy topic not configured"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown route"})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func sampleView(id, stage string) status.ProjectView {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return status.ProjectView{
		ID:      id,
		Stage:   stage,
		Step:    2,
		Version: 3,
		Product: status.ProductView{
			Name:      "Ceramic Mug",
			Category:  "Kitchenware",
			Price:     "$24.99",
			MediaPath: "/uploads/pitch.mp4",
			MediaType: "video",
		},
		Artifacts: status.ArtifactsView{Script: "A mug worth waking up for."},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
