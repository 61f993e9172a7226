package project

import (
	"errors"
	"testing"
	"time"
)

func newTestProject() *Project {
	now := time.Now().UTC()
	return &Project{
		ID:      "proj-1",
		Version: 1,
		Inputs: Inputs{
			ProductImagePath: "/uploads/product.png",
			PersonMediaPath:  "/uploads/person.mp4",
			PersonMediaType:  "video",
			ProductName:      "Ceramic Mug",
		},
		Stage:     StageUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCanStartFromUploaded(t *testing.T) {
	p := newTestProject()
	if err := p.CanStart(StageVideoGenerating); err != nil {
		t.Fatalf("video from uploaded: %v", err)
	}
	if err := p.CanStart(StageWebsiteGenerating); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("website from uploaded = %v, want ErrInvalidTransition", err)
	}
	if err := p.CanStart(StagePublishing); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("publish from uploaded = %v, want ErrInvalidTransition", err)
	}
	if err := p.CanStart(StageUploaded); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("non-generating target = %v, want ErrInvalidTransition", err)
	}
}

func TestCanStartRejectsActiveJob(t *testing.T) {
	p := newTestProject()
	p.BeginJob(StageVideoGenerating, "job-1", time.Now())
	if err := p.CanStart(StageVideoGenerating); !errors.Is(err, ErrConflict) {
		t.Fatalf("with active job = %v, want ErrConflict", err)
	}
}

func TestCanStartBranchesAfterVideo(t *testing.T) {
	p := newTestProject()
	p.Stage = StageVideoComplete
	p.Artifacts.VideoPath = "/artifacts/video.mp4"

	if err := p.CanStart(StageWebsiteGenerating); err != nil {
		t.Fatalf("website after video: %v", err)
	}
	if err := p.CanStart(StagePublishing); err != nil {
		t.Fatalf("publish after video: %v", err)
	}
	// Regenerating the video remains allowed once the artifact exists.
	if err := p.CanStart(StageVideoGenerating); err != nil {
		t.Fatalf("video regeneration: %v", err)
	}
}

func TestCanStartRetryFromFailed(t *testing.T) {
	p := newTestProject()
	p.SetFailed("timeout", "video render exceeded deadline", time.Now())

	if err := p.CanStart(StageVideoGenerating); err != nil {
		t.Fatalf("retry video from failed: %v", err)
	}
	// Website retry from failed requires a surviving video artifact.
	if err := p.CanStart(StageWebsiteGenerating); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("website from failed without video = %v, want ErrInvalidTransition", err)
	}
	p.Artifacts.VideoPath = "/artifacts/video.mp4"
	if err := p.CanStart(StageWebsiteGenerating); err != nil {
		t.Fatalf("website from failed with video: %v", err)
	}
}

func TestApplySuccessCommitsCompletion(t *testing.T) {
	p := newTestProject()
	p.BeginJob(StageVideoGenerating, "job-1", time.Now())

	if err := p.ApplySuccess(Artifacts{VideoPath: "/artifacts/video.mp4"}); err != nil {
		t.Fatalf("apply success: %v", err)
	}
	if p.Stage != StageVideoComplete {
		t.Fatalf("stage = %s, want %s", p.Stage, StageVideoComplete)
	}
	if p.Artifacts.VideoPath != "/artifacts/video.mp4" {
		t.Fatalf("video path = %q", p.Artifacts.VideoPath)
	}
	if p.HasActiveJob() {
		t.Fatal("job handle should be cleared after success")
	}
}

func TestApplySuccessWithoutJob(t *testing.T) {
	p := newTestProject()
	if err := p.ApplySuccess(Artifacts{VideoPath: "/artifacts/video.mp4"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("apply success without job = %v, want ErrInvalidTransition", err)
	}
}

func TestRegenerationKeepsOldArtifactUntilSuccess(t *testing.T) {
	p := newTestProject()
	p.Stage = StageVideoComplete
	p.Artifacts.VideoPath = "/artifacts/v1.mp4"

	p.BeginJob(StageVideoGenerating, "job-2", time.Now())
	if p.Artifacts.VideoPath != "/artifacts/v1.mp4" {
		t.Fatal("starting regeneration must not discard the previous artifact")
	}

	if err := p.ApplySuccess(Artifacts{VideoPath: "/artifacts/v2.mp4"}); err != nil {
		t.Fatalf("apply success: %v", err)
	}
	if p.Artifacts.VideoPath != "/artifacts/v2.mp4" {
		t.Fatalf("video path = %q, want replacement artifact", p.Artifacts.VideoPath)
	}
}

func TestSetFailedClearsJob(t *testing.T) {
	p := newTestProject()
	p.BeginJob(StagePublishing, "job-3", time.Now())
	p.SetFailed("external", "instagram rejected the post", time.Now())

	if p.Stage != StageFailed {
		t.Fatalf("stage = %s, want failed", p.Stage)
	}
	if p.HasActiveJob() {
		t.Fatal("job handle should be cleared on failure")
	}
	if p.Error.Kind != "external" || p.Error.OccurredAt == nil {
		t.Fatalf("failure detail incomplete: %+v", p.Error)
	}
}

func TestPublishedArtifacts(t *testing.T) {
	p := newTestProject()
	p.Artifacts.VideoPath = "/artifacts/video.mp4"
	p.BeginJob(StagePublishing, "job-4", time.Now())

	if err := p.ApplySuccess(Artifacts{PublishURL: "https://instagram.com/p/abc", PostID: "abc"}); err != nil {
		t.Fatalf("apply success: %v", err)
	}
	if p.Stage != StagePublished {
		t.Fatalf("stage = %s, want published", p.Stage)
	}
	if p.Artifacts.PublishURL == "" || p.Artifacts.PostID == "" {
		t.Fatalf("publish artifacts missing: %+v", p.Artifacts)
	}
	if p.Artifacts.VideoPath != "/artifacts/video.mp4" {
		t.Fatal("publish must not disturb sibling artifacts")
	}
}
