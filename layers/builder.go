// Package layers converts root filesystem trees into compressed OCI layer
// blobs published in an image layout directory.
package layers

import (
	"archive/tar"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bibin-skaria/ocidir/internal/errors"
	"github.com/bibin-skaria/ocidir/layout"
)

// CreateImageLayer archives the tree at rootfsPath into a gzip-compressed
// layer blob inside the image directory at layoutDir. It returns the
// Descriptor of the published blob and the layer's diff ID, the digest of
// the uncompressed archive that image configuration documents record.
//
// Both digests are computed in one streaming pass: the tar stream is hashed
// before compression and the gzip output is hashed on its way into a
// temporary file, which is only moved into blobs/sha256/ after the whole
// pipeline has finished. No partial layer is ever published.
//
// Socket special files under rootfsPath are deleted before archival starts;
// tar cannot represent them and package managers tend to leave them behind
// in caches. Callers must treat the rootfs as mutated by this call.
func CreateImageLayer(rootfsPath, layoutDir string) (v1.Descriptor, digest.Digest, error) {
	if err := removeSockets(rootfsPath); err != nil {
		return v1.Descriptor{}, "", err
	}

	tmp, err := os.CreateTemp("", "ocidir-layer-*")
	if err != nil {
		return v1.Descriptor{}, "", errors.NewFilesystemError("create-layer", os.TempDir(), err)
	}
	tmpPath := tmp.Name()
	published := false
	defer func() {
		tmp.Close()
		if !published {
			os.Remove(tmpPath)
		}
	}()

	// temp file <- digest(compressed blob) <- gzip <- digest(diff ID) <- tar
	blobWriter := layout.NewDigestWriter(tmp)
	gz, err := gzip.NewWriterLevel(blobWriter, gzip.BestSpeed)
	if err != nil {
		return v1.Descriptor{}, "", errors.NewArchiveError("create-layer", rootfsPath, err)
	}
	diffWriter := layout.NewDigestWriter(gz)
	tw := tar.NewWriter(diffWriter)

	if err := archiveTree(tw, rootfsPath); err != nil {
		return v1.Descriptor{}, "", err
	}

	// Finish the pipeline from the inside out
	if err := tw.Close(); err != nil {
		return v1.Descriptor{}, "", errors.NewArchiveError("create-layer", rootfsPath, err)
	}
	diffID, _ := diffWriter.Finish()
	if err := gz.Close(); err != nil {
		return v1.Descriptor{}, "", errors.NewFilesystemError("create-layer", tmpPath, err)
	}
	blobDigest, _ := blobWriter.Finish()

	if err := tmp.Sync(); err != nil {
		return v1.Descriptor{}, "", errors.NewFilesystemError("create-layer", tmpPath, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return v1.Descriptor{}, "", errors.NewFilesystemError("create-layer", tmpPath, err)
	}
	size := info.Size()
	if err := tmp.Close(); err != nil {
		return v1.Descriptor{}, "", errors.NewFilesystemError("create-layer", tmpPath, err)
	}

	if err := layout.PublishBlob(tmpPath, layoutDir, blobDigest); err != nil {
		return v1.Descriptor{}, "", err
	}
	published = true

	return v1.Descriptor{
		MediaType: v1.MediaTypeImageLayerGzip,
		Digest:    blobDigest,
		Size:      size,
	}, diffID, nil
}

// removeSockets deletes every socket special file under root. Any walk or
// delete failure aborts layer creation before archival begins.
func removeSockets(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewArchiveError("remove-sockets", path, err)
		}
		if d.Type()&fs.ModeSocket != 0 {
			if err := os.Remove(path); err != nil {
				return errors.NewFilesystemError("remove-sockets", path, err)
			}
		}
		return nil
	})
}
