// Package lock provides the named, expiring mutual-exclusion primitive used to
// keep at most one transcoding attempt per video and one upload sweep alive
// across every worker process.
//
// Acquisition is a single atomic add-if-absent with a time-to-live: it never
// queues and never blocks. Callers that lose the race simply skip their work.
// The Redis implementation shares locks between processes; the in-memory
// implementation serves single-daemon deployments and tests.
package lock
