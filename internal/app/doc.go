// Package app assembles the orchestrator from configuration: the sqlite
// store, the storage backend, the shared lock and cache (Redis when
// configured, in-process otherwise), the task queue, and the services built
// on them. Both the daemon and the operator CLI open an App.
package app
