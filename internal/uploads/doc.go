// Package uploads reconciles upload reservations against backend storage.
//
// A reservation is created before any bytes exist. The Monitor later asks the
// backend whether the file landed; once it has, the reservation is consumed,
// the video row is created (get-or-create, so concurrent or repeated sweeps
// are harmless) and the first transcoding attempt is enqueued. Reservations
// that stay unconsumed long after expiry are pruned.
package uploads
