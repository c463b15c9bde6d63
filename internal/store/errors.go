package store

import "errors"

// ErrNotFound reports that a mutation targeted a video or subtitle that no
// longer exists.
var ErrNotFound = errors.New("store: record not found")
