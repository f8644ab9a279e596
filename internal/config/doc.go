// Package config loads, normalizes, and validates summify configuration data.
//
// It supplies repository defaults, derives storage paths from data_dir,
// expands user paths (including tilde shortcuts), reads TOML files, and
// honours environment fallbacks for AI credentials such as DEEPSEEK_API_KEY.
// The Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
