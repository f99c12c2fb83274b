// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package espfs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestCopyAtomic_missingSrc(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)

	if err := fs.CopyAtomic("/esp/dst", "/src", 0644); err == nil {
		t.Errorf("Expected error")
	}
	if fs.Exists("/esp/dst") {
		t.Errorf("Destination exists after failed copy")
	}
}

func TestCopyAtomic_newFile(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)
	afero.WriteFile(memFs, "/src", []byte("file b"), 0644)
	memFs.MkdirAll("/esp", 0755)

	if err := fs.CopyAtomic("/esp/dst", "/src", 0644); err != nil {
		t.Fatalf("Could not copy file: %v", err)
	}

	dstBytes, err := afero.ReadFile(memFs, "/esp/dst")
	if err != nil {
		t.Fatalf("Could not read dst: %v", err)
	}
	if !bytes.Equal(dstBytes, []byte("file b")) {
		t.Errorf("Expected %q, got %q", "file b", dstBytes)
	}
}

func TestCopyAtomic_overwrite(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)
	afero.WriteFile(memFs, "/src", []byte("new"), 0644)
	afero.WriteFile(memFs, "/esp/dst", []byte("old"), 0644)

	if err := fs.CopyAtomic("/esp/dst", "/src", 0644); err != nil {
		t.Fatalf("Could not copy file: %v", err)
	}

	dstBytes, _ := afero.ReadFile(memFs, "/esp/dst")
	if !bytes.Equal(dstBytes, []byte("new")) {
		t.Errorf("Expected %q, got %q", "new", dstBytes)
	}
}

func TestCopyAtomic_noTempFileLeftBehind(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)
	afero.WriteFile(memFs, "/src", []byte("data"), 0644)
	memFs.MkdirAll("/esp", 0755)

	if err := fs.CopyAtomic("/esp/dst", "/src", 0644); err != nil {
		t.Fatalf("Could not copy file: %v", err)
	}

	entries, err := afero.ReadDir(memFs, "/esp")
	if err != nil {
		t.Fatalf("Could not read /esp: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".dst") {
			t.Errorf("Temporary file %s left behind", entry.Name())
		}
	}
}

func TestWriteAtomic(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)
	memFs.MkdirAll("/esp", 0755)

	if err := fs.WriteAtomic("/esp/dst", []byte("payload"), 0644); err != nil {
		t.Fatalf("Could not write file: %v", err)
	}
	dstBytes, _ := afero.ReadFile(memFs, "/esp/dst")
	if !bytes.Equal(dstBytes, []byte("payload")) {
		t.Errorf("Expected %q, got %q", "payload", dstBytes)
	}
}

func TestFilesEqual(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs := New(memFs)
	afero.WriteFile(memFs, "/a", []byte("same"), 0644)
	afero.WriteFile(memFs, "/b", []byte("same"), 0644)
	afero.WriteFile(memFs, "/c", []byte("different"), 0644)

	if equal, err := fs.FilesEqual("/a", "/b"); err != nil || !equal {
		t.Errorf("Expected equal, got %v (error %v)", equal, err)
	}
	if equal, err := fs.FilesEqual("/a", "/c"); err != nil || equal {
		t.Errorf("Expected not equal, got %v (error %v)", equal, err)
	}
	if _, err := fs.FilesEqual("/a", "/missing"); err == nil {
		t.Errorf("Expected error for missing file")
	}
}
