package layout

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bibin-skaria/ocidir/internal/errors"
)

// WriteJSONBlob serializes value as JSON into the blob store at dir and
// returns a Descriptor naming the result. The bytes are streamed through a
// DigestWriter into a temporary file and only published at
// blobs/sha256/<digest> once the full serialization has been written, so a
// partially written blob is never visible under its final name.
//
// Writing the same value twice converges on the same file and the same
// Descriptor; content addressing makes the operation idempotent.
func WriteJSONBlob(value interface{}, mediaType string, dir string) (v1.Descriptor, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return v1.Descriptor{}, errors.NewSerializationError("write-blob", err)
	}

	tmp, err := os.CreateTemp("", "ocidir-blob-*")
	if err != nil {
		return v1.Descriptor{}, errors.NewFilesystemError("write-blob", os.TempDir(), err)
	}
	tmpPath := tmp.Name()

	dw := NewDigestWriter(tmp)
	if _, err := dw.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return v1.Descriptor{}, errors.NewFilesystemError("write-blob", tmpPath, err)
	}
	dgst, _ := dw.Finish()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return v1.Descriptor{}, errors.NewFilesystemError("write-blob", tmpPath, err)
	}

	if err := PublishBlob(tmpPath, dir, dgst); err != nil {
		os.Remove(tmpPath)
		return v1.Descriptor{}, err
	}

	return v1.Descriptor{
		MediaType: mediaType,
		Digest:    dgst,
		Size:      int64(len(data)),
	}, nil
}

// PublishBlob moves the file at src into the blob store at dir under the
// name dgst. Rename is attempted first; when it fails (typically because
// src lives on a different filesystem) the bytes are copied to a sibling
// temporary file inside the blobs directory and renamed from there, so the
// final path never exposes a partially written blob.
func PublishBlob(src, dir string, dgst digest.Digest) error {
	dest := BlobPath(dir, dgst)
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.NewFilesystemError("publish", src, err)
	}
	defer in.Close()
	defer os.Remove(src)

	sibling, err := os.CreateTemp(filepath.Dir(dest), ".blob-*")
	if err != nil {
		return errors.NewFilesystemError("publish", filepath.Dir(dest), err)
	}
	siblingPath := sibling.Name()
	if _, err := io.Copy(sibling, in); err != nil {
		sibling.Close()
		os.Remove(siblingPath)
		return errors.NewFilesystemError("publish", dest, err)
	}
	if err := sibling.Close(); err != nil {
		os.Remove(siblingPath)
		return errors.NewFilesystemError("publish", siblingPath, err)
	}
	if err := os.Rename(siblingPath, dest); err != nil {
		os.Remove(siblingPath)
		return errors.NewFilesystemError("publish", dest, err)
	}
	return nil
}
