package renderer

import "context"

// Kind identifies a renderer service family. The controller and dispatcher
// only ever speak in kinds; vendor identity stays inside the client packages.
type Kind string

const (
	KindVideo   Kind = "video"
	KindWebsite Kind = "website"
	KindPublish Kind = "publish"
)

// State is the lifecycle position of a remote job as reported by a renderer.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether the state will not change on further polls.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Request carries everything a renderer needs to start a job. Fields that do
// not apply to a given kind are left empty.
type Request struct {
	ProjectID string

	Script             string
	ProductImagePath   string
	PersonMediaPath    string
	PersonMediaType    string
	ProductName        string
	ProductDescription string
	ProductCategory    string
	ProductPrice       string

	// Video options.
	VideoStyle  string
	VideoLayout string

	// Website and publish consume the finished video.
	VideoPath string

	// Publish options.
	Caption string
}

// Artifact is the output of a successful job.
type Artifact struct {
	VideoPath  string
	SitePath   string
	PublishURL string
	PostID     string
}

// Outcome is the result of polling a job. Reason is populated when State is
// failed.
type Outcome struct {
	State    State
	Artifact Artifact
	Reason   string
}

// Client is the contract every renderer service implements. Submit returns a
// service-assigned job id used for all later correlation; Poll returns
// ErrNotFound when the service no longer knows the job; Cancel is best-effort.
type Client interface {
	Kind() Kind
	Submit(ctx context.Context, req Request) (string, error)
	Poll(ctx context.Context, jobID string) (Outcome, error)
	Cancel(ctx context.Context, jobID string) error
}
