// Package config loads, normalizes, and validates adforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ADFORGE_SCRIPT_API_KEY. The Config type centralizes every knob the daemon
// and CLI need: directories, renderer endpoints, workflow intervals, and
// notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
