// Package status projects durable project records into read-only views for
// the HTTP API and the CLI. Every view is derived from the store at read
// time, so a client polling after a write always sees that write.
package status

import (
	"context"
	"time"

	"adforge/internal/project"
)

// ProductView summarizes the immutable upload inputs.
type ProductView struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       string `json:"price,omitempty"`
	ImagePath   string `json:"image_path"`
	MediaPath   string `json:"media_path"`
	MediaType   string `json:"media_type,omitempty"`
}

// ArtifactsView lists the outputs produced so far.
type ArtifactsView struct {
	Script     string `json:"script,omitempty"`
	VideoPath  string `json:"video_path,omitempty"`
	SitePath   string `json:"site_path,omitempty"`
	PublishURL string `json:"publish_url,omitempty"`
	PostID     string `json:"post_id,omitempty"`
}

// JobView describes the active renderer job, when one is in flight.
type JobView struct {
	ID          string     `json:"id"`
	Stage       string     `json:"stage"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// ErrorView describes the recorded failure on a failed project.
type ErrorView struct {
	Kind       string     `json:"kind"`
	Message    string     `json:"message"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// ProjectView is the externally visible shape of a project. Step is the
// wizard position derived from the stage so clients never track progress
// themselves.
type ProjectView struct {
	ID        string        `json:"id"`
	Stage     string        `json:"stage"`
	Step      int           `json:"step"`
	Version   int64         `json:"version"`
	Product   ProductView   `json:"product"`
	Artifacts ArtifactsView `json:"artifacts"`
	Job       *JobView      `json:"job,omitempty"`
	Error     *ErrorView    `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Overview aggregates pipeline health for the status endpoint.
type Overview struct {
	Total    int            `json:"total"`
	InFlight int            `json:"in_flight"`
	ByStage  map[string]int `json:"by_stage"`
}

// Service reads views from the project store.
type Service struct {
	store *project.Store
}

// NewService wraps a store.
func NewService(store *project.Store) *Service {
	return &Service{store: store}
}

// Get returns the view for one project. Missing ids surface the store's
// ErrNotFound unchanged.
func (s *Service) Get(ctx context.Context, id string) (ProjectView, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ProjectView{}, err
	}
	return viewOf(p), nil
}

// List returns views for all projects, newest first.
func (s *Service) List(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, viewOf(p))
	}
	return views, nil
}

// Overview returns stage counts across the store.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Overview{}, err
	}
	overview := Overview{ByStage: make(map[string]int, len(stats))}
	for stage, count := range stats {
		overview.Total += count
		if project.IsGenerating(stage) {
			overview.InFlight += count
		}
		overview.ByStage[string(stage)] = count
	}
	return overview, nil
}

func viewOf(p *project.Project) ProjectView {
	view := ProjectView{
		ID:      p.ID,
		Stage:   string(p.Stage),
		Step:    p.Stage.StepIndex(),
		Version: p.Version,
		Product: ProductView{
			Name:        p.Inputs.ProductName,
			Description: p.Inputs.ProductDescription,
			Category:    p.Inputs.ProductCategory,
			Price:       p.Inputs.ProductPrice,
			ImagePath:   p.Inputs.ProductImagePath,
			MediaPath:   p.Inputs.PersonMediaPath,
			MediaType:   p.Inputs.PersonMediaType,
		},
		Artifacts: ArtifactsView{
			Script:     p.Artifacts.Script,
			VideoPath:  p.Artifacts.VideoPath,
			SitePath:   p.Artifacts.SitePath,
			PublishURL: p.Artifacts.PublishURL,
			PostID:     p.Artifacts.PostID,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.HasActiveJob() {
		view.Job = &JobView{
			ID:          p.JobID,
			Stage:       string(p.JobStage),
			SubmittedAt: p.JobSubmittedAt,
		}
	}
	if p.Error.Kind != "" || p.Error.Message != "" {
		view.Error = &ErrorView{
			Kind:       p.Error.Kind,
			Message:    p.Error.Message,
			OccurredAt: p.Error.OccurredAt,
		}
	}
	return view
}
