// Package services defines shared utilities consumed by the task handlers and
// backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, task names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     as retryable or permanent for the task worker.
//
// Use these helpers when wiring new task logic so operational behaviour (error
// handling, observability, retries) stays uniform across the orchestrator.
package services
