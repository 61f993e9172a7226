// Package dispatch tracks renderer jobs from submission to terminal outcome.
//
// The dispatcher owns a watch goroutine per in-flight job. Each watch polls
// the renderer at the configured interval until the job reports a terminal
// state or the stage deadline passes, then delivers a Completion to the
// handler installed at startup. Deadline expiry synthesizes a timeout failure
// and cancels the remote job best-effort; the renderer finishing afterwards
// is harmless because completions are fenced upstream by job id.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"adforge/internal/logging"
	"adforge/internal/renderer"
)

// Completion is the terminal result of a watched job. FailureKind is the
// short label persisted on the project when State is failed.
type Completion struct {
	Kind        renderer.Kind
	JobID       string
	Outcome     renderer.Outcome
	FailureKind string
}

// Handler receives completions from watch goroutines. It must be safe for
// concurrent calls.
type Handler func(ctx context.Context, completion Completion)

type registration struct {
	client       renderer.Client
	pollInterval time.Duration
}

type watchEntry struct {
	cancel context.CancelFunc
}

// Dispatcher routes submissions to registered renderer clients and watches
// submitted jobs until completion.
type Dispatcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[renderer.Kind]registration
	watches map[string]*watchEntry
	handler Handler
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a dispatcher. Clients are added with Register before Start.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		logger:  logging.NewComponentLogger(logger, "dispatch"),
		clients: make(map[renderer.Kind]registration),
		watches: make(map[string]*watchEntry),
	}
}

// Register adds a renderer client. pollInterval governs how often its jobs
// are polled while watched.
func (d *Dispatcher) Register(client renderer.Client, pollInterval time.Duration) {
	if client == nil {
		return
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[client.Kind()] = registration{client: client, pollInterval: pollInterval}
}

// Start installs the completion handler and arms the dispatcher's run
// context. Watches started before Start fail.
func (d *Dispatcher) Start(ctx context.Context, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
	d.runCtx, d.cancel = context.WithCancel(ctx)
}

// Stop cancels every active watch and waits for the goroutines to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runCtx = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Submit sends a job to the renderer for the given kind. A synchronous
// rejection or unreachable service surfaces as ErrExternalService from the
// client; an unregistered kind is a programming error reported the same way.
func (d *Dispatcher) Submit(ctx context.Context, kind renderer.Kind, req renderer.Request) (string, error) {
	reg, err := d.registration(kind)
	if err != nil {
		return "", err
	}
	return reg.client.Submit(ctx, req)
}

// Query polls a job once on behalf of the reconciler.
func (d *Dispatcher) Query(ctx context.Context, kind renderer.Kind, jobID string) (renderer.Outcome, error) {
	reg, err := d.registration(kind)
	if err != nil {
		return renderer.Outcome{}, err
	}
	return reg.client.Poll(ctx, jobID)
}

// Cancel asks the renderer to abandon a job and stops any active watch on it.
func (d *Dispatcher) Cancel(ctx context.Context, kind renderer.Kind, jobID string) error {
	d.stopWatch(jobID)
	reg, err := d.registration(kind)
	if err != nil {
		return err
	}
	return reg.client.Cancel(ctx, jobID)
}

// Watch starts polling the job until it reaches a terminal state or the
// deadline passes. Watching the same job id twice replaces the earlier watch.
func (d *Dispatcher) Watch(kind renderer.Kind, jobID string, deadline time.Time) error {
	reg, err := d.registration(kind)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.runCtx == nil {
		d.mu.Unlock()
		return errors.New("dispatcher not started")
	}
	if prev, ok := d.watches[jobID]; ok {
		prev.cancel()
	}
	watchCtx, cancel := context.WithCancel(d.runCtx)
	entry := &watchEntry{cancel: cancel}
	d.watches[jobID] = entry
	handler := d.handler
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.clearWatch(jobID, entry)
		d.watch(watchCtx, reg, kind, jobID, deadline, handler)
	}()
	return nil
}

// Watching reports whether a watch goroutine is active for the job.
func (d *Dispatcher) Watching(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.watches[jobID]
	return ok
}

func (d *Dispatcher) watch(ctx context.Context, reg registration, kind renderer.Kind, jobID string, deadline time.Time, handler Handler) {
	log := d.logger.With(
		logging.String(logging.FieldRenderer, string(kind)),
		logging.String(logging.FieldJobID, jobID),
	)

	timeout := time.Until(deadline)
	if timeout <= 0 {
		d.deliverTimeout(ctx, reg, kind, jobID, handler, log)
		return
	}
	deadlineTimer := time.NewTimer(timeout)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(reg.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadlineTimer.C:
			d.deliverTimeout(ctx, reg, kind, jobID, handler, log)
			return
		case <-ticker.C:
		}

		outcome, err := reg.client.Poll(ctx, jobID)
		if err != nil {
			if errors.Is(err, renderer.ErrNotFound) {
				log.Warn("job lost in flight")
				d.deliver(handler, Completion{
					Kind:  kind,
					JobID: jobID,
					Outcome: renderer.Outcome{
						State:  renderer.StateFailed,
						Reason: renderer.ReasonLostInFlight,
					},
					FailureKind: renderer.FailureKind(err),
				})
				return
			}
			if ctx.Err() != nil {
				return
			}
			// Transient poll failures keep the watch alive; the deadline
			// bounds how long a silent renderer can stall the stage.
			log.Warn("poll failed", logging.Error(err))
			continue
		}
		if !outcome.State.Terminal() {
			continue
		}

		completion := Completion{Kind: kind, JobID: jobID, Outcome: outcome}
		if outcome.State == renderer.StateFailed {
			completion.FailureKind = renderer.FailureKind(renderer.ErrExternalService)
		}
		d.deliver(handler, completion)
		return
	}
}

func (d *Dispatcher) deliverTimeout(ctx context.Context, reg registration, kind renderer.Kind, jobID string, handler Handler, log *slog.Logger) {
	log.Warn("job deadline expired")

	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := reg.client.Cancel(cancelCtx, jobID); err != nil {
		log.Warn("cancel after timeout failed", logging.Error(err))
	}

	d.deliver(handler, Completion{
		Kind:  kind,
		JobID: jobID,
		Outcome: renderer.Outcome{
			State:  renderer.StateFailed,
			Reason: fmt.Sprintf("%s stage exceeded its deadline", kind),
		},
		FailureKind: renderer.FailureKind(renderer.ErrTimeout),
	})
}

func (d *Dispatcher) deliver(handler Handler, completion Completion) {
	if handler == nil {
		return
	}
	// Completions are applied under a fresh context so a daemon shutdown in
	// progress cannot drop a result that already finished remotely.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	handler(ctx, completion)
}

func (d *Dispatcher) stopWatch(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.watches[jobID]; ok {
		entry.cancel()
		delete(d.watches, jobID)
	}
}

// clearWatch removes the entry only if it still belongs to the finished
// goroutine, so a re-armed watch on the same job id is left alone.
func (d *Dispatcher) clearWatch(jobID string, entry *watchEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.watches[jobID]; ok && current == entry {
		current.cancel()
		delete(d.watches, jobID)
	}
}

func (d *Dispatcher) registration(kind renderer.Kind) (registration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reg, ok := d.clients[kind]
	if !ok {
		return registration{}, renderer.Wrap(renderer.ErrExternalService, kind, "dispatch", "no client registered", nil)
	}
	return reg, nil
}
