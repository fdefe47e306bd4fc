// Package workflow runs the folder-watch loops that feed images through
// classification, enrichment, and persistence.
//
// A Manager owns one loop per running workflow, capped by
// engine.max_concurrent_workflows. Each cycle reloads the criticality rules,
// scans the workflow's source folder for new images (deduplicated by content
// checksum), enqueues them, and processes at most one pending item before
// sleeping for the workflow interval. Failed items are retried on later
// cycles until their retry budget is spent, at which point the item is marked
// failed and the whole workflow is stopped for operator attention.
//
// Workflow status in the store is the durable view; the in-memory handle map
// is the authority on which loops are actually alive. Start and Stop keep the
// two consistent, and the loop finalizer repairs the stored status when a
// loop ends on its own.
package workflow
