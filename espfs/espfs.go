// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package espfs provides the filesystem primitives used when writing to an
// EFI System Partition: atomic file placement, byte-exact comparison, and
// case-correct path resolution for case-preserving FAT.
package espfs

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS wraps an afero filesystem with the operations this project needs.
// Production code uses NewOS; tests inject a MemMapFs via New.
type FS struct {
	fs afero.Fs
}

// NewOS returns an FS backed by the host filesystem.
func NewOS() FS {
	return New(afero.NewOsFs())
}

// New returns an FS backed by the given afero filesystem.
func New(fs afero.Fs) FS {
	return FS{fs: fs}
}

// Exists reports whether path exists.
func (f FS) Exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	return err == nil && ok
}

// MkdirRecursive behaves like os.MkdirAll.
func (f FS) MkdirRecursive(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

// Remove behaves like os.Remove.
func (f FS) Remove(path string) error {
	return f.fs.Remove(path)
}

// FilesEqual reports whether the two files have byte-identical content.
// To keep things simple, but not have the files in memory, it hashes them.
func (f FS) FilesEqual(a string, b string) (bool, error) {
	aHash, err := f.hashFile(a)
	if err != nil {
		return false, err
	}
	bHash, err := f.hashFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aHash, bHash), nil
}

func (f FS) hashFile(path string) ([]byte, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return nil, fmt.Errorf("cannot hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

// CopyAtomic copies src to dst such that dst is either fully written or
// left unmodified. The data is staged in a temporary file next to dst,
// synced, and renamed into place.
func (f FS) CopyAtomic(dst string, src string, perm os.FileMode) error {
	srcFile, err := f.fs.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open source file: %w", err)
	}
	defer srcFile.Close()

	return f.writeAtomic(dst, srcFile, perm)
}

// WriteAtomic writes data to dst with the same guarantees as CopyAtomic.
func (f FS) WriteAtomic(dst string, data []byte, perm os.FileMode) error {
	return f.writeAtomic(dst, bytes.NewReader(data), perm)
}

func (f FS) writeAtomic(dst string, src io.Reader, perm os.FileMode) error {
	tmp, err := afero.TempFile(f.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("cannot write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		f.fs.Remove(tmpName)
		return fmt.Errorf("cannot sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("cannot close %s: %w", tmpName, err)
	}
	if err := f.fs.Chmod(tmpName, perm); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("cannot chmod %s: %w", tmpName, err)
	}
	if err := f.fs.Rename(tmpName, dst); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("cannot rename %s to %s: %w", tmpName, dst, err)
	}
	return nil
}
