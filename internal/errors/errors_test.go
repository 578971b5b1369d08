package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestBuildErrorFormat(t *testing.T) {
	err := NewValidationError("init", "/tmp/store", "unrecognized image layout version \"2.0.0\"")
	expected := "[validation] init /tmp/store: unrecognized image layout version \"2.0.0\""
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestBuildErrorFormatNoPath(t *testing.T) {
	err := NewSerializationError("write-blob", fmt.Errorf("unsupported type"))
	expected := "[serialization] write-blob: unsupported type"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := fs.ErrPermission
	err := NewFilesystemError("publish", "/tmp/store/blobs", cause)

	if !stderrors.Is(err, fs.ErrPermission) {
		t.Error("Expected errors.Is to find the wrapped cause")
	}
}

func TestCategoryOf(t *testing.T) {
	err := NewArchiveError("archive", "/rootfs/etc", fmt.Errorf("permission denied"))
	if got := CategoryOf(err); got != ErrorCategoryArchive {
		t.Errorf("Expected category %q, got %q", ErrorCategoryArchive, got)
	}

	wrapped := fmt.Errorf("building layer: %w", err)
	if got := CategoryOf(wrapped); got != ErrorCategoryArchive {
		t.Errorf("Expected category of wrapped error %q, got %q", ErrorCategoryArchive, got)
	}

	if got := CategoryOf(fmt.Errorf("plain")); got != ErrorCategory("") {
		t.Errorf("Expected empty category for plain error, got %q", got)
	}
}
