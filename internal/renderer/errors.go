package renderer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes renderer context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, kind Kind, operation, message string, err error) error {
	detail := buildDetail(kind, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ReasonLostInFlight is the failure reason recorded when a submitted job is
// no longer known to its renderer.
const ReasonLostInFlight = "lost-in-flight"

// FailureKind maps an error to the short failure label persisted on a project
// record.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "lost"
	case errors.Is(err, ErrExternalService):
		return "external"
	default:
		return "transient"
	}
}

func buildDetail(kind Kind, operation, message string) string {
	parts := make([]string, 0, 3)
	if kind != "" {
		parts = append(parts, string(kind))
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "renderer failure"
	}
	return strings.Join(parts, ": ")
}
