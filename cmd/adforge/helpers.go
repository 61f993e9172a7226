package main

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// stageLabel turns a stage identifier into a display label, for example
// "video_generating" becomes "Video Generating".
func stageLabel(stage string) string {
	if stage == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(stage, "_", " "))
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
