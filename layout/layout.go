// Package layout manages an OCI image layout directory: a content-addressable
// store of digest-named blobs under blobs/sha256/ plus the oci-layout marker
// and index.json files defined by the OCI image-layout convention.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bibin-skaria/ocidir/internal/errors"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// Init ensures dir is a usable OCI image layout directory.
//
// A nonexistent path is created and initialized. An existing empty directory
// is initialized. A directory carrying an oci-layout marker with version
// "1.0.0" is accepted as-is. Any other state is an error: an unrecognized
// layout version, or a non-empty directory that is not an image directory
// (Init refuses to touch unrelated contents).
func Init(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return errors.NewFilesystemError("init", dir, err)
		}
		return initDir(dir)
	}
	if err != nil {
		return errors.NewFilesystemError("init", dir, err)
	}
	if !info.IsDir() {
		return errors.NewValidationError("init", dir, "path exists and is not a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewFilesystemError("init", dir, err)
	}

	for _, entry := range entries {
		if entry.Name() != v1.ImageLayoutFile {
			continue
		}
		markerPath := filepath.Join(dir, v1.ImageLayoutFile)
		data, err := os.ReadFile(markerPath)
		if err != nil {
			return errors.NewFilesystemError("init", markerPath, err)
		}
		var marker v1.ImageLayout
		if err := json.Unmarshal(data, &marker); err != nil {
			return errors.NewValidationError("init", markerPath,
				fmt.Sprintf("malformed layout marker: %v", err))
		}
		if marker.Version != v1.ImageLayoutVersion {
			return errors.NewValidationError("init", dir,
				fmt.Sprintf("unrecognized image layout version %q", marker.Version))
		}
		// Existing valid store, nothing to do
		return nil
	}

	if len(entries) == 0 {
		return initDir(dir)
	}
	return errors.NewValidationError("init", dir,
		"directory exists but is not an OCI image directory")
}

// initDir creates blobs/sha256, the oci-layout marker, and an empty
// index.json, in that order. No rollback on partial failure: initDir only
// ever runs against a previously empty or newly created directory.
func initDir(dir string) error {
	blobsDir := filepath.Join(dir, v1.ImageBlobsDir, digest.Canonical.String())
	if err := os.MkdirAll(blobsDir, dirPerm); err != nil {
		return errors.NewFilesystemError("init", blobsDir, err)
	}

	markerPath := filepath.Join(dir, v1.ImageLayoutFile)
	markerData, err := json.Marshal(v1.ImageLayout{Version: v1.ImageLayoutVersion})
	if err != nil {
		return errors.NewSerializationError("init", err)
	}
	if err := os.WriteFile(markerPath, markerData, filePerm); err != nil {
		return errors.NewFilesystemError("init", markerPath, err)
	}

	index := v1.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		Manifests: []v1.Descriptor{},
	}
	indexData, err := json.Marshal(index)
	if err != nil {
		return errors.NewSerializationError("init", err)
	}
	indexPath := filepath.Join(dir, v1.ImageIndexFile)
	if err := os.WriteFile(indexPath, indexData, filePerm); err != nil {
		return errors.NewFilesystemError("init", indexPath, err)
	}
	return nil
}

// BlobPath returns the path of the blob named by dgst inside the layout
// directory dir.
func BlobPath(dir string, dgst digest.Digest) string {
	return filepath.Join(dir, v1.ImageBlobsDir, dgst.Algorithm().String(), dgst.Encoded())
}

// ReadIndex reads and parses index.json from the layout directory
func ReadIndex(dir string) (*v1.Index, error) {
	indexPath := filepath.Join(dir, v1.ImageIndexFile)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, errors.NewFilesystemError("read-index", indexPath, err)
	}
	var index v1.Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, errors.NewSerializationError("read-index", err)
	}
	return &index, nil
}

// WriteIndex replaces index.json in the layout directory
func WriteIndex(dir string, index *v1.Index) error {
	data, err := json.Marshal(index)
	if err != nil {
		return errors.NewSerializationError("write-index", err)
	}
	indexPath := filepath.Join(dir, v1.ImageIndexFile)
	if err := os.WriteFile(indexPath, data, filePerm); err != nil {
		return errors.NewFilesystemError("write-index", indexPath, err)
	}
	return nil
}
