// Package testsupport provides shared fixtures for package tests: throwaway
// configurations rooted in temp directories, opened stores, and a scriptable
// fake renderer client.
package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"adforge/internal/config"
	"adforge/internal/project"
	"adforge/internal/renderer"
)

// NewConfig returns a validated configuration rooted in a temp directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.UploadDir = filepath.Join(root, "uploads")
	cfg.Paths.ArtifactDir = filepath.Join(root, "artifacts")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	return &cfg
}

// MustOpenStore opens a project store for the configuration and closes it
// when the test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *project.Store {
	t.Helper()
	store, err := project.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SampleInputs returns a complete upload payload for fixtures.
func SampleInputs() project.Inputs {
	return project.Inputs{
		ProductImagePath:   "/uploads/product.png",
		PersonMediaPath:    "/uploads/person.mp4",
		PersonMediaType:    "video",
		ProductName:        "Ceramic Mug",
		ProductDescription: "Hand-thrown stoneware that keeps coffee hot",
		ProductCategory:    "Kitchenware",
		ProductPrice:       "$24.99",
	}
}

// FakeRenderer is a scriptable renderer.Client. Submissions are assigned
// sequential job ids; outcomes default to running until set.
type FakeRenderer struct {
	kind renderer.Kind

	mu        sync.Mutex
	nextJob   int
	submitErr error
	outcomes  map[string]renderer.Outcome
	pollErrs  map[string]error
	submitted []renderer.Request
	jobIDs    []string
	canceled  []string
}

// NewFakeRenderer builds a fake client for the given kind.
func NewFakeRenderer(kind renderer.Kind) *FakeRenderer {
	return &FakeRenderer{
		kind:     kind,
		outcomes: make(map[string]renderer.Outcome),
		pollErrs: make(map[string]error),
	}
}

func (f *FakeRenderer) Kind() renderer.Kind { return f.kind }

func (f *FakeRenderer) Submit(ctx context.Context, req renderer.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextJob++
	jobID := fmt.Sprintf("%s-job-%d", f.kind, f.nextJob)
	f.submitted = append(f.submitted, req)
	f.jobIDs = append(f.jobIDs, jobID)
	return jobID, nil
}

func (f *FakeRenderer) Poll(ctx context.Context, jobID string) (renderer.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.pollErrs[jobID]; ok && err != nil {
		return renderer.Outcome{}, err
	}
	if outcome, ok := f.outcomes[jobID]; ok {
		return outcome, nil
	}
	return renderer.Outcome{State: renderer.StateRunning}, nil
}

func (f *FakeRenderer) Cancel(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, jobID)
	return nil
}

// FailSubmissions makes every Submit return the given error.
func (f *FakeRenderer) FailSubmissions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// Complete marks the job succeeded with the given artifact.
func (f *FakeRenderer) Complete(jobID string, artifact renderer.Artifact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[jobID] = renderer.Outcome{State: renderer.StateSucceeded, Artifact: artifact}
}

// Fail marks the job failed with the given reason.
func (f *FakeRenderer) Fail(jobID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[jobID] = renderer.Outcome{State: renderer.StateFailed, Reason: reason}
}

// SetPollError makes polls for the job return the given error. A nil error
// clears a previously set one.
func (f *FakeRenderer) SetPollError(jobID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollErrs[jobID] = err
}

// LastJobID returns the id assigned to the most recent submission.
func (f *FakeRenderer) LastJobID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobIDs) == 0 {
		return ""
	}
	return f.jobIDs[len(f.jobIDs)-1]
}

// Submitted returns a copy of the submitted requests.
func (f *FakeRenderer) Submitted() []renderer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]renderer.Request(nil), f.submitted...)
}

// Canceled returns a copy of the canceled job ids.
func (f *FakeRenderer) Canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}
