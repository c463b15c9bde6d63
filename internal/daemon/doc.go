// Package daemon coordinates the long-running videofront process.
//
// It wires the assembled app (store, backend, lock, cache, queue) to the
// task workers, the cron scheduler, and the HTTP surface, under a flock-based
// lock that prevents a second daemon from sharing the same state directory.
// At start it hands unacknowledged Redis tasks back to the queue and marks
// attempts interrupted by a crash for restart.
//
// Keep orchestration logic here: the upload sweep, transcoding, and subtitle
// handling live in their own packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
