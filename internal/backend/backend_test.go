package backend

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTranscodingFailedUnwraps(t *testing.T) {
	err := fmt.Errorf("check job: %w", Failed("bad codec"))
	msg, ok := IsTranscodingFailed(err)
	if !ok || msg != "bad codec" {
		t.Fatalf("IsTranscodingFailed = %q, %v", msg, ok)
	}
	if _, ok := IsTranscodingFailed(errors.New("network down")); ok {
		t.Fatal("plain errors are not job failures")
	}
	if _, ok := IsTranscodingFailed(ErrNotUploaded); ok {
		t.Fatal("ErrNotUploaded is not a job failure")
	}
}
