package project

import "errors"

var (
	// ErrNotFound indicates the requested project id does not exist.
	ErrNotFound = errors.New("project not found")
	// ErrConflict indicates a transition was requested while a renderer job
	// is already in flight for the project.
	ErrConflict = errors.New("project has an active job")
	// ErrInvalidTransition indicates the requested edge is not permitted from
	// the project's current stage.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrVersionConflict indicates a write used a stale version token and was
	// rejected to prevent a lost update.
	ErrVersionConflict = errors.New("project version conflict")
)
