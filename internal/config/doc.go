// Package config loads, normalizes, and validates autoingest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for secrets
// such as the API token and object storage credentials. Secrets may also live
// in an optional dotenv file next to the config; real environment variables
// win over file entries.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
