// Package services defines shared utilities consumed by the workflow engine
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp workflow IDs, queue item IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so collaborator failures
//     carry a consistent shape into workflow logs.
//
// Subpackages hold the concrete collaborators: ollama (document classifier)
// and objectstore (MinIO upload target).
package services
