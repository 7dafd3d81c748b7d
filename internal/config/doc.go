// Package config loads, normalizes, and validates cadence configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MAX_FILE_SIZE and CADENCE_API_BIND. The Config type centralizes every knob
// the service and CLI need: the scratch directory, the upload admission rules,
// the fixed transcode profile, and the retention windows for job records.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, parsed size limits, and clear validation errors.
package config
