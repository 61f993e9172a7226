package project

import "strings"

// Stage represents the authoritative lifecycle position of a project.
type Stage string

const (
	StageUploaded          Stage = "uploaded"
	StageVideoGenerating   Stage = "video_generating"
	StageVideoComplete     Stage = "video_complete"
	StageWebsiteGenerating Stage = "website_generating"
	StageWebsiteComplete   Stage = "website_complete"
	StagePublishing        Stage = "publishing"
	StagePublished         Stage = "published"
	StageFailed            Stage = "failed"
)

var allStages = []Stage{
	StageUploaded,
	StageVideoGenerating,
	StageVideoComplete,
	StageWebsiteGenerating,
	StageWebsiteComplete,
	StagePublishing,
	StagePublished,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

var generatingStages = map[Stage]struct{}{
	StageVideoGenerating:   {},
	StageWebsiteGenerating: {},
	StagePublishing:        {},
}

// completionStages maps each generating stage to the stage committed when its
// job succeeds.
var completionStages = map[Stage]Stage{
	StageVideoGenerating:   StageVideoComplete,
	StageWebsiteGenerating: StageWebsiteComplete,
	StagePublishing:        StagePublished,
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// IsGenerating reports whether a stage reflects an in-flight renderer job.
func IsGenerating(stage Stage) bool {
	_, ok := generatingStages[stage]
	return ok
}

// CompletionOf returns the stage committed when a job for the given
// generating stage succeeds.
func CompletionOf(generating Stage) (Stage, bool) {
	done, ok := completionStages[generating]
	return done, ok
}

// StepIndex maps a stage onto the four-step wizard the UI renders. It is
// derived from the authoritative stage on every read so the client never
// tracks progress state of its own.
func (s Stage) StepIndex() int {
	switch s {
	case StageUploaded:
		return 1
	case StageVideoGenerating, StageVideoComplete:
		return 2
	case StageWebsiteGenerating, StageWebsiteComplete:
		return 3
	case StagePublishing, StagePublished:
		return 4
	default:
		return 0
	}
}
