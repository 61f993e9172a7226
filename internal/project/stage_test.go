package project

import "testing"

func TestParseStage(t *testing.T) {
	tests := []struct {
		input string
		want  Stage
		ok    bool
	}{
		{"uploaded", StageUploaded, true},
		{"  Video_Generating  ", StageVideoGenerating, true},
		{"PUBLISHED", StagePublished, true},
		{"", "", false},
		{"rendering", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStage(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseStage(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseStage(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCompletionOf(t *testing.T) {
	pairs := map[Stage]Stage{
		StageVideoGenerating:   StageVideoComplete,
		StageWebsiteGenerating: StageWebsiteComplete,
		StagePublishing:        StagePublished,
	}
	for generating, want := range pairs {
		done, ok := CompletionOf(generating)
		if !ok || done != want {
			t.Errorf("CompletionOf(%s) = %s, %v; want %s, true", generating, done, ok, want)
		}
	}
	if _, ok := CompletionOf(StageUploaded); ok {
		t.Error("CompletionOf(uploaded) should not resolve")
	}
}

func TestIsGenerating(t *testing.T) {
	for _, stage := range []Stage{StageVideoGenerating, StageWebsiteGenerating, StagePublishing} {
		if !IsGenerating(stage) {
			t.Errorf("IsGenerating(%s) = false, want true", stage)
		}
	}
	for _, stage := range []Stage{StageUploaded, StageVideoComplete, StagePublished, StageFailed} {
		if IsGenerating(stage) {
			t.Errorf("IsGenerating(%s) = true, want false", stage)
		}
	}
}

func TestStepIndex(t *testing.T) {
	tests := []struct {
		stage Stage
		want  int
	}{
		{StageUploaded, 1},
		{StageVideoGenerating, 2},
		{StageVideoComplete, 2},
		{StageWebsiteGenerating, 3},
		{StageWebsiteComplete, 3},
		{StagePublishing, 4},
		{StagePublished, 4},
		{StageFailed, 0},
	}
	for _, tt := range tests {
		if got := tt.stage.StepIndex(); got != tt.want {
			t.Errorf("%s.StepIndex() = %d, want %d", tt.stage, got, tt.want)
		}
	}
}
