// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package bootman hosts bootloader backends: it owns the session state a
// backend operates against, selects a backend by capability, and serializes
// installation work on a given ESP.
package bootman

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/canonical/shimboot/espfs"
)

// Session is the state one backend activation runs against. It is owned by
// exactly one activation and must not be shared across concurrent ones.
type Session struct {
	prefix    string // root under which source loader images are read
	bootRoot  string // root of the mounted ESP
	vendor    string // ESP namespace directory and entry file prefix
	imageMode bool   // building an installable image vs. updating a live system
	fs        espfs.FS

	lockFile *os.File
}

// NewSession returns a Session backed by the host filesystem.
func NewSession(prefix, bootRoot, vendor string, imageMode bool) *Session {
	return NewSessionWithFS(espfs.NewOS(), prefix, bootRoot, vendor, imageMode)
}

// NewSessionWithFS returns a Session backed by the given filesystem.
func NewSessionWithFS(fs espfs.FS, prefix, bootRoot, vendor string, imageMode bool) *Session {
	return &Session{
		prefix:    prefix,
		bootRoot:  bootRoot,
		vendor:    vendor,
		imageMode: imageMode,
		fs:        fs,
	}
}

// SourcePrefix returns the root under which source loader images are read.
func (s *Session) SourcePrefix() string { return s.prefix }

// BootRoot returns the root of the mounted ESP.
func (s *Session) BootRoot() string { return s.bootRoot }

// Vendor returns the ESP namespace this installation owns.
func (s *Session) Vendor() string { return s.vendor }

// IsImageMode reports whether an offline image is being built.
func (s *Session) IsImageMode() bool { return s.imageMode }

// FS returns the filesystem the session operates on.
func (s *Session) FS() espfs.FS { return s.fs }

// Lock takes an exclusive advisory lock on the ESP so that no other
// activation mutates it concurrently. It does not block: a held lock is an
// error, the caller decides whether to retry.
func (s *Session) Lock() error {
	if s.lockFile != nil {
		return nil
	}
	path := filepath.Join(s.bootRoot, ".shimboot.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("cannot open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("cannot lock %s: %w", path, err)
	}
	s.lockFile = f
	return nil
}

// Unlock releases the lock taken by Lock. Safe to call when not locked.
func (s *Session) Unlock() {
	if s.lockFile == nil {
		return
	}
	unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN)
	s.lockFile.Close()
	s.lockFile = nil
}
