// Package transcode drives transcoding attempts.
//
// An attempt holds the per-video lock for its whole lifetime, resets the
// processing state, starts one backend job per output format and polls all of
// them until every job has finished or failed. Progress is the mean of the
// per-job values. A failed attempt records every job's message; attempts that
// were the first for a freshly uploaded video also purge its assets. A
// successful attempt creates a thumbnail and replaces the format rows.
//
// Operators mark videos restart-requested; RestartRequested turns those marks
// back into attempts that keep assets on failure.
package transcode
