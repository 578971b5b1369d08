package layers

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bibin-skaria/ocidir/internal/errors"
)

type hardlinkKey struct {
	dev uint64
	ino uint64
}

// archiveTree writes every entry under root into tw with paths relative to
// root. Symbolic links are stored as link entries and never followed;
// regular files with multiple names are stored once, later names becoming
// hardlink entries. Walk order is the lexical order of filepath.Walk, which
// is stable for a fixed tree.
func archiveTree(tw *tar.Writer, root string) error {
	seen := make(map[hardlinkKey]string)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.NewArchiveError("archive", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.NewArchiveError("archive", path, err)
		}
		if rel == "." {
			return nil
		}
		return writeEntry(tw, path, filepath.ToSlash(rel), info, seen)
	})
}

func writeEntry(tw *tar.Writer, path, name string, info os.FileInfo, seen map[hardlinkKey]string) error {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return errors.NewArchiveError("archive", path, err)
		}
		link = target
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return errors.NewArchiveError("archive", path, err)
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	// atime changes on every read; keeping it would make otherwise
	// identical trees hash differently between builds
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		hdr.Uid = int(st.Uid)
		hdr.Gid = int(st.Gid)
		if info.Mode().IsRegular() && st.Nlink > 1 {
			key := hardlinkKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}
			if first, ok := seen[key]; ok {
				hdr.Typeflag = tar.TypeLink
				hdr.Linkname = first
				hdr.Size = 0
			} else {
				seen[key] = name
			}
		}
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return errors.NewArchiveError("archive", path, err)
	}
	if hdr.Typeflag != tar.TypeReg || hdr.Size == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.NewArchiveError("archive", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return errors.NewArchiveError("archive", path, err)
	}
	return nil
}
