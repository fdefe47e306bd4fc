// Package main hosts the autoingest CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: workflow administration, queue maintenance, log
// following, and status reporting. Configuration resolution and socket
// discovery live here so subcommands only deal with presentation.
//
// Add new behavior to the internal packages first, then surface it through a
// command here.
package main
