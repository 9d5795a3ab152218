// Package config loads, normalizes, and validates marquee configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// KOFIC_API_KEY. The Config type centralizes every knob the CLI stages need,
// so the data tree (movies, years, search), the state directory, and the
// upstream quota and retry settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
