// Package main hosts the videofront operator CLI.
//
// Commands open the same store, backend, cache, and task queue the daemon
// uses, so every operation runs in-process against shared state. With the
// in-memory queue, tasks enqueued by a command are drained before it exits;
// durable queues leave them to a running daemon.
package main
