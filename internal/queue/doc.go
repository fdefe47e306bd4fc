// Package queue persists auto-ingestion state in SQLite: workflows, their
// queue items, the append-only workflow log, users, and processed documents.
//
// The Store owns the database connection, schema initialization, busy retries,
// and the status transitions of the per-item state machine
// (pending -> processing -> completed, or back to pending with an incremented
// retry count until max_retries forces failed). Queue items are deduplicated by
// content checksum within a workflow; the UNIQUE(workflow_id, checksum) index
// is the final arbiter and surfaces as ErrDuplicateChecksum.
//
// Every method opens and commits its own unit of work. No transaction is held
// open across calls, so slow collaborators never pin database locks.
//
// Schema changes bump the version in schema.go; users move the database aside
// to adopt the new schema.
package queue
