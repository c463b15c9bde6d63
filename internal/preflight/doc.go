// Package preflight provides readiness checks for the filesystem paths,
// disk space, shared services, and binaries that videofront depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at start and logs every failure as a
//     warning. A failed check never stops the daemon.
//   - The CLI "videofront deps" command prints the same results as a table.
//
// Each check is gated by the configured backend: the storage root and disk
// space checks only apply to the local backend.
package preflight
