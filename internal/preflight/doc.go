// Package preflight provides readiness checks for the services and
// filesystem paths the ingestion daemon depends on.
//
// The daemon runs them once at startup and logs failures, and the CLI
// "autoingest status" command renders them as a Dependencies section.
// Checks for disabled features are skipped.
package preflight
