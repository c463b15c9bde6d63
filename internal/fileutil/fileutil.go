package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// PartialSuffix marks files that are still being written.
const PartialSuffix = ".part"

// WriteResult describes a completed write.
type WriteResult struct {
	Size   int64
	SHA256 string
}

// WriteAtomic streams r into dst+PartialSuffix and renames it onto dst once
// every byte is on disk, so readers never observe a partial file. It returns
// the size and SHA256 of what was written.
func WriteAtomic(dst string, r io.Reader, mode os.FileMode) (WriteResult, error) {
	tmp := dst + PartialSuffix
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return WriteResult{}, fmt.Errorf("create %s: %w", dst, err)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), r)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return WriteResult{}, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return WriteResult{}, fmt.Errorf("rename %s: %w", dst, err)
	}
	return WriteResult{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// IsPartial reports whether name is an in-progress WriteAtomic file.
func IsPartial(name string) bool {
	return len(name) > len(PartialSuffix) && name[len(name)-len(PartialSuffix):] == PartialSuffix
}
