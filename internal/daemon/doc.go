// Package daemon coordinates the long-running autoingest process.
//
// It wires configuration, the SQLite store, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// On start it reconciles workflows a previous process left running and warns
// about items stuck in processing; it never resumes workflows on its own.
//
// The daemon exposes workflow administration (add, start, stop, remove),
// queue maintenance helpers, and log queries to the IPC layer and to an
// optional chi-based HTTP API protected by a bearer token.
//
// Keep orchestration logic here: the folder-scan loop and the pipeline live
// in the workflow package while the daemon focuses on startup, shutdown, and
// operator-facing coordination.
package daemon
