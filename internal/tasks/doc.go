// Package tasks carries orchestrator work between the scheduler, the CLI and
// the daemon workers.
//
// Four tasks exist: reconcile_uploads, transcode_video, restart_transcodes
// and prune_reservations. Delivery is at least once; every handler is safe to
// run repeatedly for the same input. Queues are in-process (memory), Redis
// lists, or SQS, selected by tasks.queue in the config.
package tasks
