package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adforge/internal/renderer"
)

type fakeClient struct {
	kind renderer.Kind

	mu       sync.Mutex
	outcomes []pollResult
	canceled []string
	submitID string
}

type pollResult struct {
	outcome renderer.Outcome
	err     error
}

func (f *fakeClient) Kind() renderer.Kind { return f.kind }

func (f *fakeClient) Submit(ctx context.Context, req renderer.Request) (string, error) {
	if f.submitID == "" {
		return "", renderer.Wrap(renderer.ErrExternalService, f.kind, "submit", "unavailable", nil)
	}
	return f.submitID, nil
}

func (f *fakeClient) Poll(ctx context.Context, jobID string) (renderer.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return renderer.Outcome{State: renderer.StateRunning}, nil
	}
	next := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return next.outcome, next.err
}

func (f *fakeClient) Cancel(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, jobID)
	return nil
}

func (f *fakeClient) canceledJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.canceled...)
}

func newTestDispatcher(t *testing.T, client *fakeClient) (*Dispatcher, chan Completion) {
	t.Helper()
	d := New(nil)
	d.Register(client, 10*time.Millisecond)
	completions := make(chan Completion, 4)
	d.Start(context.Background(), func(ctx context.Context, c Completion) {
		completions <- c
	})
	t.Cleanup(d.Stop)
	return d, completions
}

func waitCompletion(t *testing.T, ch chan Completion) Completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for completion")
		return Completion{}
	}
}

func TestSubmitRouting(t *testing.T) {
	client := &fakeClient{kind: renderer.KindVideo, submitID: "vid-1"}
	d, _ := newTestDispatcher(t, client)

	jobID, err := d.Submit(context.Background(), renderer.KindVideo, renderer.Request{ProjectID: "p"})
	if err != nil || jobID != "vid-1" {
		t.Fatalf("submit = %q, %v", jobID, err)
	}

	if _, err := d.Submit(context.Background(), renderer.KindWebsite, renderer.Request{}); !errors.Is(err, renderer.ErrExternalService) {
		t.Fatalf("unregistered kind = %v, want ErrExternalService", err)
	}
}

func TestWatchDeliversSuccess(t *testing.T) {
	client := &fakeClient{
		kind: renderer.KindVideo,
		outcomes: []pollResult{
			{outcome: renderer.Outcome{State: renderer.StateRunning}},
			{outcome: renderer.Outcome{
				State:    renderer.StateSucceeded,
				Artifact: renderer.Artifact{VideoPath: "/artifacts/v.mp4"},
			}},
		},
	}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindVideo, "vid-1", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	c := waitCompletion(t, completions)
	if c.JobID != "vid-1" || c.Outcome.State != renderer.StateSucceeded {
		t.Fatalf("completion = %+v", c)
	}
	if c.Outcome.Artifact.VideoPath != "/artifacts/v.mp4" {
		t.Fatalf("artifact = %+v", c.Outcome.Artifact)
	}
	if c.FailureKind != "" {
		t.Fatalf("failure kind = %q, want empty on success", c.FailureKind)
	}
}

func TestWatchDeliversFailure(t *testing.T) {
	client := &fakeClient{
		kind: renderer.KindWebsite,
		outcomes: []pollResult{
			{outcome: renderer.Outcome{State: renderer.StateFailed, Reason: "build broke"}},
		},
	}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindWebsite, "site-1", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	c := waitCompletion(t, completions)
	if c.Outcome.State != renderer.StateFailed || c.Outcome.Reason != "build broke" {
		t.Fatalf("completion = %+v", c)
	}
	if c.FailureKind != "external" {
		t.Fatalf("failure kind = %q", c.FailureKind)
	}
}

func TestWatchTimeoutSynthesizesFailureAndCancels(t *testing.T) {
	client := &fakeClient{kind: renderer.KindVideo}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindVideo, "vid-slow", time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	c := waitCompletion(t, completions)
	if c.FailureKind != "timeout" || c.Outcome.State != renderer.StateFailed {
		t.Fatalf("completion = %+v", c)
	}
	canceled := client.canceledJobs()
	if len(canceled) != 1 || canceled[0] != "vid-slow" {
		t.Fatalf("canceled jobs = %v", canceled)
	}
}

func TestWatchLostJob(t *testing.T) {
	client := &fakeClient{
		kind: renderer.KindPublish,
		outcomes: []pollResult{
			{err: renderer.Wrap(renderer.ErrNotFound, renderer.KindPublish, "poll", "unknown job", nil)},
		},
	}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindPublish, "post-1", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	c := waitCompletion(t, completions)
	if c.FailureKind != "lost" {
		t.Fatalf("failure kind = %q", c.FailureKind)
	}
	if c.Outcome.Reason != "lost-in-flight" {
		t.Fatalf("reason = %q, want %q", c.Outcome.Reason, "lost-in-flight")
	}
}

func TestWatchSurvivesTransientPollErrors(t *testing.T) {
	client := &fakeClient{
		kind: renderer.KindVideo,
		outcomes: []pollResult{
			{err: renderer.Wrap(renderer.ErrExternalService, renderer.KindVideo, "poll", "http 500", nil)},
			{err: renderer.Wrap(renderer.ErrTransient, renderer.KindVideo, "poll", "flaky", nil)},
			{outcome: renderer.Outcome{
				State:    renderer.StateSucceeded,
				Artifact: renderer.Artifact{VideoPath: "/artifacts/v.mp4"},
			}},
		},
	}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindVideo, "vid-flaky", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	c := waitCompletion(t, completions)
	if c.Outcome.State != renderer.StateSucceeded {
		t.Fatalf("completion = %+v", c)
	}
}

func TestCancelStopsWatch(t *testing.T) {
	client := &fakeClient{kind: renderer.KindVideo}
	d, completions := newTestDispatcher(t, client)

	if err := d.Watch(renderer.KindVideo, "vid-1", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !d.Watching("vid-1") {
		t.Fatal("expected active watch")
	}
	if err := d.Cancel(context.Background(), renderer.KindVideo, "vid-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if d.Watching("vid-1") {
		t.Fatal("watch should be stopped after cancel")
	}
	select {
	case c := <-completions:
		t.Fatalf("unexpected completion after cancel: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueryPassthrough(t *testing.T) {
	client := &fakeClient{
		kind: renderer.KindVideo,
		outcomes: []pollResult{
			{outcome: renderer.Outcome{State: renderer.StateRunning}},
		},
	}
	d, _ := newTestDispatcher(t, client)

	out, err := d.Query(context.Background(), renderer.KindVideo, "vid-1")
	if err != nil || out.State != renderer.StateRunning {
		t.Fatalf("query = %+v, %v", out, err)
	}
}
