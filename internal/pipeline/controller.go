// Package pipeline owns the project lifecycle: it validates transition
// requests, submits renderer jobs, applies fenced completions, and keeps the
// durable record as the single source of truth.
//
// Concurrency control is layered. A keyed per-project mutex serializes the
// controller's own read-modify-write cycles; the store's compare-and-swap on
// the record version is the backstop that rejects any write that slipped past
// the lock with a stale view.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/logging"
	"adforge/internal/notifications"
	"adforge/internal/project"
	"adforge/internal/renderer"
	"adforge/internal/script"
)

// stageKinds maps each generating stage to the renderer family serving it.
var stageKinds = map[project.Stage]renderer.Kind{
	project.StageVideoGenerating:   renderer.KindVideo,
	project.StageWebsiteGenerating: renderer.KindWebsite,
	project.StagePublishing:        renderer.KindPublish,
}

// KindForStage resolves the renderer kind serving a generating stage.
func KindForStage(stage project.Stage) (renderer.Kind, bool) {
	kind, ok := stageKinds[stage]
	return kind, ok
}

// Controller coordinates transitions between the store, the dispatcher, and
// the notification service.
type Controller struct {
	cfg        *config.Config
	store      *project.Store
	dispatcher *dispatch.Dispatcher
	scripts    script.Service
	notifier   notifications.Service
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*projectLock
}

// projectLock is a keyed mutex entry with a waiter count so the table can be
// pruned once no operation holds or awaits the lock.
type projectLock struct {
	mu   sync.Mutex
	refs int
}

// New constructs a controller. A nil notifier or logger falls back to no-ops.
func New(cfg *config.Config, store *project.Store, dispatcher *dispatch.Dispatcher, scripts script.Service, notifier notifications.Service, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	if scripts == nil {
		scripts = script.TemplateWriter{}
	}
	return &Controller{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		scripts:    scripts,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		locks:      make(map[string]*projectLock),
	}
}

// CreateProject persists a new project and attaches its marketing script.
// Script generation failures degrade to the template writer so upload never
// fails on a flaky LLM endpoint.
func (c *Controller) CreateProject(ctx context.Context, in project.Inputs) (*project.Project, error) {
	p, err := c.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	log := c.logger.With(logging.String(logging.FieldProjectID, p.ID))

	text, err := c.scripts.Generate(ctx, in)
	if err != nil {
		log.Warn("script generation failed, using template", logging.Error(err))
		text, _ = script.TemplateWriter{}.Generate(ctx, in)
	}
	if err := c.store.SetScript(ctx, p, text); err != nil {
		return nil, err
	}

	if err := c.notifier.NotifyProjectCreated(ctx, in.ProductName); err != nil {
		log.Warn("notify project created failed", logging.Error(err))
	}
	log.Info("project created", logging.String(logging.FieldStage, string(p.Stage)))
	return p, nil
}

// RequestTransition validates and starts a generation stage. It returns the
// updated record immediately after the job is accepted; completion arrives
// later through ApplyCompletion.
func (c *Controller) RequestTransition(ctx context.Context, projectID string, target project.Stage, params TransitionParams) (*project.Project, error) {
	kind, ok := KindForStage(target)
	if !ok {
		return nil, project.ErrInvalidTransition
	}
	params, err := params.normalize(kind)
	if err != nil {
		return nil, err
	}

	lock := c.lock(projectID)
	defer c.unlock(projectID, lock)

	p, err := c.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := p.CanStart(target); err != nil {
		return nil, err
	}

	req := c.buildRequest(p, kind, params)
	jobID, err := c.dispatcher.Submit(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.BeginJob(target, jobID, now)
	if err := c.store.UpdateCAS(ctx, p); err != nil {
		// The record moved underneath us; abandon the job we just started.
		c.cancelJob(kind, jobID)
		if errors.Is(err, project.ErrVersionConflict) {
			return nil, project.ErrConflict
		}
		return nil, err
	}

	log := c.logger.With(
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldStage, string(target)),
		logging.String(logging.FieldJobID, jobID),
	)
	if err := c.dispatcher.Watch(kind, jobID, c.StageDeadline(target, now)); err != nil {
		log.Error("arming watch failed", logging.Error(err))
	}
	if err := c.notifier.NotifyStageStarted(ctx, p.Inputs.ProductName, string(target)); err != nil {
		log.Warn("notify stage started failed", logging.Error(err))
	}
	log.Info("stage started")
	return p, nil
}

// ApplyCompletion commits a terminal job outcome. Completions whose job id no
// longer matches any project's active job are silently discarded; this is
// what makes late, duplicate, and superseded results harmless.
func (c *Controller) ApplyCompletion(ctx context.Context, completion dispatch.Completion) {
	owner, err := c.store.FindByJobID(ctx, completion.JobID)
	if err != nil {
		c.logger.Error("completion owner lookup failed",
			logging.String(logging.FieldJobID, completion.JobID), logging.Error(err))
		return
	}
	if owner == nil {
		c.logger.Debug("completion fenced, no owning project",
			logging.String(logging.FieldJobID, completion.JobID))
		return
	}

	lock := c.lock(owner.ID)
	defer c.unlock(owner.ID, lock)

	p, err := c.store.GetByID(ctx, owner.ID)
	if err != nil {
		c.logger.Error("completion reload failed",
			logging.String(logging.FieldProjectID, owner.ID), logging.Error(err))
		return
	}
	// Re-check under the lock: the job may have been superseded between the
	// lookup and here.
	if p.JobID != completion.JobID {
		c.logger.Debug("completion fenced, job superseded",
			logging.String(logging.FieldProjectID, p.ID),
			logging.String(logging.FieldJobID, completion.JobID))
		return
	}

	log := c.logger.With(
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldStage, string(p.JobStage)),
		logging.String(logging.FieldJobID, completion.JobID),
	)
	stage := p.JobStage

	if completion.Outcome.State == renderer.StateSucceeded {
		if err := p.ApplySuccess(artifactsFrom(completion.Outcome.Artifact)); err != nil {
			log.Error("applying success failed", logging.Error(err))
			return
		}
	} else {
		kind := completion.FailureKind
		if kind == "" {
			kind = "external"
		}
		reason := completion.Outcome.Reason
		if reason == "" {
			reason = "generation failed"
		}
		p.SetFailed(kind, reason, time.Now())
	}

	if err := c.store.UpdateCAS(ctx, p); err != nil {
		log.Error("persisting completion failed", logging.Error(err))
		return
	}

	if p.Stage == project.StageFailed {
		log.Warn("stage failed", logging.String("reason", p.Error.Message))
		if err := c.notifier.NotifyPipelineFailed(ctx, p.Inputs.ProductName, string(stage), p.Error.Message); err != nil {
			log.Warn("notify failure failed", logging.Error(err))
		}
		return
	}

	log.Info("stage completed", logging.String(logging.FieldStage, string(p.Stage)))
	var notifyErr error
	if p.Stage == project.StagePublished {
		notifyErr = c.notifier.NotifyPublished(ctx, p.Inputs.ProductName, p.Artifacts.PublishURL)
	} else {
		notifyErr = c.notifier.NotifyStageCompleted(ctx, p.Inputs.ProductName, string(stage))
	}
	if notifyErr != nil {
		log.Warn("notify completion failed", logging.Error(notifyErr))
	}
}

// Cancel marks an in-flight project failed and abandons its job. Without an
// active job there is nothing to cancel.
func (c *Controller) Cancel(ctx context.Context, projectID string) (*project.Project, error) {
	lock := c.lock(projectID)
	defer c.unlock(projectID, lock)

	p, err := c.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.HasActiveJob() {
		return nil, project.ErrInvalidTransition
	}

	kind, _ := KindForStage(p.JobStage)
	jobID := p.JobID
	p.SetFailed("canceled", "canceled by request", time.Now())
	if err := c.store.UpdateCAS(ctx, p); err != nil {
		return nil, err
	}

	c.cancelJob(kind, jobID)
	c.logger.Info("project canceled",
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldJobID, jobID))
	return p, nil
}

// StageDeadline computes the watch deadline for a stage started at the given
// time, from the per-renderer timeout configuration.
func (c *Controller) StageDeadline(stage project.Stage, submittedAt time.Time) time.Time {
	kind, ok := KindForStage(stage)
	if !ok {
		return submittedAt
	}
	r, ok := c.cfg.RendererFor(string(kind))
	if !ok {
		return submittedAt.Add(5 * time.Minute)
	}
	return submittedAt.Add(r.Timeout())
}

// ResumeWatch re-arms the dispatcher watch for an in-flight project, using
// the deadline budget remaining from the original submission.
func (c *Controller) ResumeWatch(p *project.Project) error {
	kind, ok := KindForStage(p.JobStage)
	if !ok || p.JobID == "" {
		return project.ErrInvalidTransition
	}
	submitted := time.Now().UTC()
	if p.JobSubmittedAt != nil {
		submitted = *p.JobSubmittedAt
	}
	return c.dispatcher.Watch(kind, p.JobID, c.StageDeadline(p.JobStage, submitted))
}

func (c *Controller) buildRequest(p *project.Project, kind renderer.Kind, params TransitionParams) renderer.Request {
	req := renderer.Request{
		ProjectID:          p.ID,
		Script:             p.Artifacts.Script,
		ProductImagePath:   p.Inputs.ProductImagePath,
		PersonMediaPath:    p.Inputs.PersonMediaPath,
		PersonMediaType:    p.Inputs.PersonMediaType,
		ProductName:        p.Inputs.ProductName,
		ProductDescription: p.Inputs.ProductDescription,
		ProductCategory:    p.Inputs.ProductCategory,
		ProductPrice:       p.Inputs.ProductPrice,
		VideoPath:          p.Artifacts.VideoPath,
	}
	switch kind {
	case renderer.KindVideo:
		req.VideoStyle = params.VideoStyle
		req.VideoLayout = params.VideoLayout
	case renderer.KindPublish:
		req.Caption = params.Caption
		if req.Caption == "" {
			req.Caption = buildCaption(p.Inputs)
		}
	}
	return req
}

func (c *Controller) cancelJob(kind renderer.Kind, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.dispatcher.Cancel(ctx, kind, jobID); err != nil {
		c.logger.Warn("job cancel failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
}

func (c *Controller) lock(projectID string) *projectLock {
	c.mu.Lock()
	lock, ok := c.locks[projectID]
	if !ok {
		lock = &projectLock{}
		c.locks[projectID] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (c *Controller) unlock(projectID string, lock *projectLock) {
	lock.mu.Unlock()
	c.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(c.locks, projectID)
	}
	c.mu.Unlock()
}

func artifactsFrom(a renderer.Artifact) project.Artifacts {
	return project.Artifacts{
		VideoPath:  a.VideoPath,
		SitePath:   a.SitePath,
		PublishURL: a.PublishURL,
		PostID:     a.PostID,
	}
}
