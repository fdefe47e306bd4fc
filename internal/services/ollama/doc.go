// Package ollama provides the document classifier backed by an Ollama vision model.
//
// # Classification Logic
//
// Classifier.Classify decodes the source image, fits it inside the configured
// maximum dimension, re-encodes it as JPEG, and posts it with a fixed prompt to
// /api/generate in JSON mode. The response is decoded into a
// document.Classification (document type, confidence, summary, tags,
// reasoning).
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty responses, dial failures, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 3
// attempts by default). Context cancellation aborts retries immediately.
// Failures still surface to the caller, which owns the per-item retry budget.
package ollama
