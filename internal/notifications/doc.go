// Package notifications delivers workflow alerts via ntfy.
//
// Only events that need a human are published: a workflow halted after an
// item exhausted its retries, or a workflow loop that faulted. The service
// degrades to a no-op when no topic is configured, and each event class can be
// switched off in the [notifications] config section.
package notifications
