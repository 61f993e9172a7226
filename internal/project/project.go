package project

import (
	"time"
)

// Inputs holds the immutable media and metadata captured at upload.
type Inputs struct {
	ProductImagePath   string
	PersonMediaPath    string
	PersonMediaType    string
	ProductName        string
	ProductDescription string
	ProductCategory    string
	ProductPrice       string
}

// Artifacts holds per-stage outputs. A field is non-empty iff its producing
// stage reached its complete state.
type Artifacts struct {
	Script     string
	VideoPath  string
	SitePath   string
	PublishURL string
	PostID     string
}

// Failure captures the terminal error recorded when a project fails.
type Failure struct {
	Kind       string
	Message    string
	OccurredAt *time.Time
}

// Project is the unit of work persisted in SQLite. Version is an optimistic
// concurrency token: every committed mutation increments it, and stale writes
// are rejected by the store.
type Project struct {
	ID      string
	Version int64

	Inputs    Inputs
	Stage     Stage
	Artifacts Artifacts
	Error     Failure

	// Active job handle, present iff Stage is a generating state.
	JobID          string
	JobStage       Stage
	JobSubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveJob reports whether a renderer job is currently in flight.
func (p *Project) HasActiveJob() bool {
	return p.JobID != ""
}

// BeginJob records a freshly submitted job and moves the project to the
// generating stage the job serves.
func (p *Project) BeginJob(generating Stage, jobID string, submittedAt time.Time) {
	at := submittedAt.UTC()
	p.Stage = generating
	p.JobID = jobID
	p.JobStage = generating
	p.JobSubmittedAt = &at
	p.Error = Failure{}
}

// ClearJob removes the active job handle.
func (p *Project) ClearJob() {
	p.JobID = ""
	p.JobStage = ""
	p.JobSubmittedAt = nil
}

// SetFailed marks the project failed with the given error detail and clears
// the active job.
func (p *Project) SetFailed(kind, message string, at time.Time) {
	occurred := at.UTC()
	p.Stage = StageFailed
	p.Error = Failure{Kind: kind, Message: message, OccurredAt: &occurred}
	p.ClearJob()
}

// CanStart validates a requested transition into the given generating stage.
// It returns ErrConflict when a job is already in flight, and
// ErrInvalidTransition when the edge is not permitted from the current stage.
//
// The transition graph allows uploaded → video, video_complete → website and
// publish in either order, retry from failed, and regeneration of any stage
// that has already produced its artifact. Regeneration keeps the previous
// artifact in place until the new job succeeds.
func (p *Project) CanStart(target Stage) error {
	if !IsGenerating(target) {
		return ErrInvalidTransition
	}
	if p.HasActiveJob() {
		return ErrConflict
	}
	switch target {
	case StageVideoGenerating:
		if p.Stage == StageUploaded || p.Stage == StageFailed || p.Artifacts.VideoPath != "" {
			return nil
		}
	case StageWebsiteGenerating, StagePublishing:
		// Both branches hang off video completion; the video artifact is the
		// proof the project got there, regardless of which branch ran first.
		if p.Artifacts.VideoPath != "" {
			return nil
		}
	}
	return ErrInvalidTransition
}

// ApplySuccess commits a successful job outcome: the completion stage for the
// job's generating stage plus its artifact. The caller has already fenced the
// outcome against the active job id.
func (p *Project) ApplySuccess(artifacts Artifacts) error {
	done, ok := CompletionOf(p.JobStage)
	if !ok {
		return ErrInvalidTransition
	}
	switch done {
	case StageVideoComplete:
		p.Artifacts.VideoPath = artifacts.VideoPath
		if artifacts.Script != "" {
			p.Artifacts.Script = artifacts.Script
		}
	case StageWebsiteComplete:
		p.Artifacts.SitePath = artifacts.SitePath
	case StagePublished:
		p.Artifacts.PublishURL = artifacts.PublishURL
		p.Artifacts.PostID = artifacts.PostID
	}
	p.Stage = done
	p.Error = Failure{}
	p.ClearJob()
	return nil
}
