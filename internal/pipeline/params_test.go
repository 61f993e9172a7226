package pipeline

import (
	"errors"
	"strings"
	"testing"

	"adforge/internal/renderer"
	"adforge/internal/testsupport"
)

func TestNormalizeVideoParams(t *testing.T) {
	params, err := TransitionParams{VideoStyle: " Cinematic ", VideoLayout: "AVATAR_MAIN"}.normalize(renderer.KindVideo)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if params.VideoStyle != "cinematic" || params.VideoLayout != "avatar_main" {
		t.Fatalf("params = %+v", params)
	}

	if _, err := (TransitionParams{VideoStyle: "sparkle"}).normalize(renderer.KindVideo); !errors.Is(err, renderer.ErrValidation) {
		t.Fatalf("bad style = %v, want ErrValidation", err)
	}
	if _, err := (TransitionParams{VideoLayout: "sideways"}).normalize(renderer.KindVideo); !errors.Is(err, renderer.ErrValidation) {
		t.Fatalf("bad layout = %v, want ErrValidation", err)
	}
}

func TestNormalizePublishParams(t *testing.T) {
	params, err := TransitionParams{}.normalize(renderer.KindPublish)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if params.PublishTarget != "instagram" {
		t.Fatalf("target = %q", params.PublishTarget)
	}
	if _, err := (TransitionParams{PublishTarget: "myspace"}).normalize(renderer.KindPublish); !errors.Is(err, renderer.ErrValidation) {
		t.Fatalf("bad target = %v, want ErrValidation", err)
	}
}

func TestBuildCaption(t *testing.T) {
	caption := buildCaption(testsupport.SampleInputs())
	for _, want := range []string{"Ceramic Mug is here!", "$24.99", "#ad", "#kitchenware", "#ceramicmug"} {
		if !strings.Contains(caption, want) {
			t.Errorf("caption missing %q:\n%s", want, caption)
		}
	}
}

func TestKindForStage(t *testing.T) {
	if kind, ok := KindForStage("video_generating"); !ok || kind != renderer.KindVideo {
		t.Fatalf("kind = %v, %v", kind, ok)
	}
	if _, ok := KindForStage("uploaded"); ok {
		t.Fatal("uploaded has no renderer kind")
	}
}
