// Package logging wires slog with adforge conventions: a console handler for
// interactive use, a JSON handler for machine consumption, standardized field
// keys, and context helpers that carry project/stage/request identifiers
// through the pipeline.
package logging
