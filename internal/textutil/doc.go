// Package textutil cleans user-supplied text before it reaches the store or
// the filesystem.
package textutil
