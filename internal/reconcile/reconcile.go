// Package reconcile re-anchors durable state to renderer reality. It runs at
// daemon startup to recover projects that were in flight when the previous
// process died, and periodically afterwards as a safety net for watches that
// were lost along the way.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/logging"
	"adforge/internal/pipeline"
	"adforge/internal/project"
	"adforge/internal/renderer"
)

// Reconciler compares every in-flight project against the dispatcher's view
// of its job and converges the two.
type Reconciler struct {
	store      *project.Store
	dispatcher *dispatch.Dispatcher
	controller *pipeline.Controller
	logger     *slog.Logger
	interval   time.Duration
	retry      time.Duration
	cron       *cron.Cron
	runCtx     context.Context
}

// New constructs a reconciler. The interval comes from the workflow
// configuration and governs the periodic safety-net runs; the retry interval
// governs how soon a project whose renderer query failed is retried.
func New(cfg *config.Config, store *project.Store, dispatcher *dispatch.Dispatcher, controller *pipeline.Controller, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Workflow.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	retry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}
	return &Reconciler{
		store:      store,
		dispatcher: dispatcher,
		controller: controller,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
		interval:   interval,
		retry:      retry,
	}
}

// Start runs one reconciliation immediately, then schedules periodic runs.
func (r *Reconciler) Start(ctx context.Context) error {
	r.runCtx = ctx
	if err := r.RunOnce(ctx); err != nil {
		return err
	}
	r.cron = cron.New()
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		runCtx, cancel := context.WithTimeout(context.Background(), r.interval)
		defer cancel()
		if err := r.RunOnce(runCtx); err != nil {
			r.logger.Error("periodic reconciliation failed", logging.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the periodic schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// RunOnce reconciles every in-flight project exactly once.
//
// Outcomes per project: a finished job is applied as if its completion had
// arrived normally; a job the renderer no longer knows is failed as lost in
// flight; a job past its stage deadline is failed as a timeout; a job still
// within budget gets its watch re-armed with the remaining time.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	inFlight, err := r.store.ListInFlight(ctx)
	if err != nil {
		return fmt.Errorf("list in-flight projects: %w", err)
	}
	if len(inFlight) == 0 {
		return nil
	}
	r.logger.Info("reconciling in-flight projects", logging.Int("count", len(inFlight)))

	for _, p := range inFlight {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.reconcileProject(ctx, p)
	}
	return nil
}

func (r *Reconciler) reconcileProject(ctx context.Context, p *project.Project) {
	log := r.logger.With(
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldStage, string(p.Stage)),
		logging.String(logging.FieldJobID, p.JobID),
	)

	kind, ok := pipeline.KindForStage(p.JobStage)
	if !ok || p.JobID == "" {
		// A generating stage without a usable job handle cannot make
		// progress; the record is the casualty of an interrupted write.
		log.Warn("in-flight project has no job handle, failing")
		r.applyLost(ctx, p)
		return
	}
	if r.dispatcher.Watching(p.JobID) {
		return
	}

	outcome, err := r.dispatcher.Query(ctx, kind, p.JobID)
	switch {
	case errors.Is(err, renderer.ErrNotFound):
		log.Warn("job lost in flight")
		r.applyLost(ctx, p)
		return
	case err != nil:
		// Renderer unreachable right now; retry this project after the
		// error-retry interval instead of waiting out the full pass.
		log.Warn("query failed, retrying shortly", logging.Error(err))
		r.scheduleRetry(p.ID)
		return
	}

	if outcome.State.Terminal() {
		log.Info("job finished while daemon was away",
			logging.String("state", string(outcome.State)))
		completion := dispatch.Completion{Kind: kind, JobID: p.JobID, Outcome: outcome}
		if outcome.State == renderer.StateFailed {
			completion.FailureKind = renderer.FailureKind(renderer.ErrExternalService)
		}
		r.controller.ApplyCompletion(ctx, completion)
		return
	}

	submitted := time.Now().UTC()
	if p.JobSubmittedAt != nil {
		submitted = *p.JobSubmittedAt
	}
	deadline := r.controller.StageDeadline(p.JobStage, submitted)
	if !deadline.After(time.Now()) {
		log.Warn("job past its deadline")
		if cancelErr := r.dispatcher.Cancel(ctx, kind, p.JobID); cancelErr != nil {
			log.Warn("cancel after deadline failed", logging.Error(cancelErr))
		}
		r.controller.ApplyCompletion(ctx, dispatch.Completion{
			Kind:  kind,
			JobID: p.JobID,
			Outcome: renderer.Outcome{
				State:  renderer.StateFailed,
				Reason: fmt.Sprintf("%s stage exceeded its deadline", kind),
			},
			FailureKind: renderer.FailureKind(renderer.ErrTimeout),
		})
		return
	}

	if err := r.controller.ResumeWatch(p); err != nil {
		log.Error("re-arming watch failed", logging.Error(err))
		return
	}
	log.Info("watch re-armed", logging.Duration("remaining", time.Until(deadline)))
}

func (r *Reconciler) applyLost(ctx context.Context, p *project.Project) {
	if p.JobID == "" {
		// Nothing to fence against; write the failure directly and let the
		// version CAS reject us if anyone else got there first.
		p.SetFailed(renderer.FailureKind(renderer.ErrNotFound), renderer.ReasonLostInFlight, time.Now())
		if err := r.store.UpdateCAS(ctx, p); err != nil && !errors.Is(err, project.ErrVersionConflict) {
			r.logger.Error("persisting lost project failed",
				logging.String(logging.FieldProjectID, p.ID), logging.Error(err))
		}
		return
	}
	kind, _ := pipeline.KindForStage(p.JobStage)
	r.controller.ApplyCompletion(ctx, dispatch.Completion{
		Kind:  kind,
		JobID: p.JobID,
		Outcome: renderer.Outcome{
			State:  renderer.StateFailed,
			Reason: renderer.ReasonLostInFlight,
		},
		FailureKind: renderer.FailureKind(renderer.ErrNotFound),
	})
}

// scheduleRetry arms a one-shot retry for a project whose renderer query
// failed, so a brief outage does not leave it waiting a full pass.
func (r *Reconciler) scheduleRetry(projectID string) {
	ctx := r.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	time.AfterFunc(r.retry, func() {
		if ctx.Err() != nil {
			return
		}
		retryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.retry)
		defer cancel()
		p, err := r.store.GetByID(retryCtx, projectID)
		if err != nil || !project.IsGenerating(p.Stage) {
			return
		}
		r.reconcileProject(retryCtx, p)
	})
}
