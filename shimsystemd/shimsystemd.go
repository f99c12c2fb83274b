// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package shimsystemd implements two-stage bootloader installation: shim as
// the first stage and systemd-boot as the second stage.
//
// The backend produces the following ESP layout (casing as probed at
// runtime, <vendor> comes from the session):
//
//	/EFI/
//	     Boot/
//	         BOOTX64.EFI          <-- fallback loader, written in image mode only
//	     <vendor>/
//	         bootloaderx64.efi    <-- shim
//	         loaderx64.efi        <-- systemd-boot
//	         BOOTX64.CSV          <-- fallback restore data for shim
//	         kernel/              <-- kernels and initrds
//	/loader/
//	     entries/                 <-- boot menu entries
//	     loader.conf
//
// The fallback loader is only written when a bootable image is being
// created. On a live system a firmware boot record (BootXXXX variable) is
// created instead, if one does not exist already.
package shimsystemd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/canonical/shimboot/bootman"
	"github.com/canonical/shimboot/efivars"
	"github.com/canonical/shimboot/sdboot"
)

// bootRecordState is the session-scoped answer to "does a firmware boot
// record for our shim exist". It is computed at most once per session:
// NVRAM queries are expensive, and decisions and actions within one session
// must observe a single consistent view of the record state.
type bootRecordState int

const (
	bootRecordUnknown bootRecordState = iota
	bootRecordPresent
	bootRecordAbsent
)

// bootRecordStore is the slice of the NVRAM subsystem this backend uses.
type bootRecordStore interface {
	Exists(espRoot, espRelPath string) (bool, error)
	Create(espRoot, espRelPath string) (string, error)
}

var appBootRecords = func() (bootRecordStore, error) {
	return efivars.NewBootRecords()
}

// Loader is one activation of the shim+systemd-boot backend.
type Loader struct {
	sess       *bootman.Session
	paths      *resolvedPaths
	records    bootRecordStore
	delegate   *sdboot.Class
	bootRecord bootRecordState
}

// New returns an uninitialized Loader; Init must be called before any other
// operation.
func New() *Loader {
	return &Loader{}
}

// Name identifies the backend.
func (l *Loader) Name() string {
	return "shim-systemd"
}

// Capabilities reports the partition table and firmware styles this backend
// supports.
func (l *Loader) Capabilities() bootman.Capability {
	return bootman.CapGPT | bootman.CapUEFI
}

// Init resolves all session paths and, outside image mode, brings up the
// boot record subsystem. It wires the kernel-entry delegate to this
// backend's kernel destination.
func (l *Loader) Init(sess *bootman.Session) error {
	if !sess.IsImageMode() {
		records, err := appBootRecords()
		if err != nil {
			return fmt.Errorf("cannot initialise boot record subsystem: %w", err)
		}
		l.records = records
	}
	l.sess = sess
	l.bootRecord = bootRecordUnknown

	// A trailing separator on the prefix would double up when source
	// paths are concatenated. The system root stays "/" so that source
	// paths remain absolute.
	prefix := sess.SourcePrefix()
	if len(prefix) > 1 && strings.HasSuffix(prefix, "/") {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix == "" {
		prefix = "/"
	}

	paths, err := resolvePaths(sess.FS(), prefix, sess.BootRoot(), sess.Vendor())
	if err != nil {
		return fmt.Errorf("cannot resolve ESP paths: %w", err)
	}
	l.paths = paths

	l.delegate = sdboot.New(sess, sdboot.Config{
		Vendor:            sess.Vendor(),
		KernelDestination: l.KernelDestination,
	})

	return nil
}

// Destroy releases all session state. Safe to call after a partial Init.
func (l *Loader) Destroy() {
	l.paths = nil
	l.records = nil
	if l.delegate != nil {
		l.delegate.Destroy()
		l.delegate = nil
	}
	l.sess = nil
	l.bootRecord = bootRecordUnknown
}

// KernelDestination returns the ESP-relative directory kernels are
// installed to.
func (l *Loader) KernelDestination() string {
	if l.paths == nil {
		return ""
	}
	return l.paths.kernelDstESP
}

// InstallKernel delegates to the systemd-boot kernel installer.
func (l *Loader) InstallKernel(kernel *bootman.Kernel) error {
	return l.delegate.InstallKernel(kernel)
}

// RemoveKernel delegates to the systemd-boot kernel installer.
func (l *Loader) RemoveKernel(kernel *bootman.Kernel) error {
	return l.delegate.RemoveKernel(kernel)
}

// SetDefaultKernel delegates to the systemd-boot kernel installer, which
// owns the loader configuration.
func (l *Loader) SetDefaultKernel(kernel *bootman.Kernel) error {
	return l.delegate.SetDefaultKernel(kernel)
}

// hasBootRecord answers whether a firmware boot record for our shim exists,
// querying NVRAM at most once per session. In image mode there is no
// firmware to record into, so the record counts as already satisfied. A
// query failure counts as absent; a later Install will then try to create
// the record and surface the real error.
func (l *Loader) hasBootRecord() bool {
	if l.bootRecord == bootRecordUnknown {
		if l.sess.IsImageMode() {
			l.bootRecord = bootRecordPresent
		} else {
			present, err := l.records.Exists(l.sess.BootRoot(), l.paths.shimDstESP)
			switch {
			case err != nil:
				logrus.WithField("path", l.paths.shimDstESP).WithError(err).Warn("cannot query boot records")
				l.bootRecord = bootRecordAbsent
			case present:
				l.bootRecord = bootRecordPresent
			default:
				l.bootRecord = bootRecordAbsent
			}
		}
	}
	return l.bootRecord == bootRecordPresent
}

// existsIdentical reports whether path exists and, if src is given, has
// content byte-identical to it.
func (l *Loader) existsIdentical(path, src string) bool {
	fs := l.sess.FS()
	if !fs.Exists(path) {
		return false
	}
	if src != "" {
		match, err := fs.FilesEqual(path, src)
		if err != nil || !match {
			return false
		}
	}
	return true
}

// NeedsInstall reports whether this is the very first install: a
// destination file is missing or no boot record exists. Content is not
// compared.
func (l *Loader) NeedsInstall() bool {
	hasRecord := l.hasBootRecord()
	if !l.existsIdentical(l.paths.shimDstHost, "") {
		return true
	}
	if !l.existsIdentical(l.paths.systemdDstHost, "") {
		return true
	}
	return !hasRecord
}

// NeedsUpdate reports whether a destination file is missing or differs from
// its source image, or no boot record exists.
func (l *Loader) NeedsUpdate() bool {
	hasRecord := l.hasBootRecord()
	if !l.existsIdentical(l.paths.shimDstHost, l.paths.shimSrc) {
		return true
	}
	if !l.existsIdentical(l.paths.systemdDstHost, l.paths.systemdSrc) {
		return true
	}
	return !hasRecord
}

// makeLayout creates the directory skeleton every install needs. Partial
// trees left behind by a failure are recreated idempotently on retry, but
// the caller must not proceed to file installation.
func (l *Loader) makeLayout() error {
	fs := l.sess.FS()

	if err := fs.MkdirRecursive(l.paths.kernelDstHost, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", l.paths.kernelDstHost, err)
	}
	if err := fs.MkdirRecursive(l.paths.entriesDstHost, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", l.paths.entriesDstHost, err)
	}
	if l.sess.IsImageMode() {
		fallbackDir := filepath.Dir(l.paths.fallbackDstHost)
		if err := fs.MkdirRecursive(fallbackDir, 0755); err != nil {
			return fmt.Errorf("cannot create %s: %w", fallbackDir, err)
		}
	}
	return nil
}

// Install places both loader stages on the ESP and makes the system reach
// them on next boot: on a live system through a firmware boot record, on an
// image through the firmware-default fallback path.
func (l *Loader) Install() error {
	fs := l.sess.FS()

	if err := l.makeLayout(); err != nil {
		logrus.WithError(err).Error("cannot create ESP layout")
		return err
	}

	if err := fs.CopyAtomic(l.paths.shimDstHost, l.paths.shimSrc, 0644); err != nil {
		logrus.WithFields(logrus.Fields{"src": l.paths.shimSrc, "dst": l.paths.shimDstHost}).Error("cannot copy shim")
		return fmt.Errorf("cannot copy %s to %s: %w", l.paths.shimSrc, l.paths.shimDstHost, err)
	}
	if err := fs.CopyAtomic(l.paths.systemdDstHost, l.paths.systemdSrc, 0644); err != nil {
		logrus.WithFields(logrus.Fields{"src": l.paths.systemdSrc, "dst": l.paths.systemdDstHost}).Error("cannot copy systemd-boot")
		return fmt.Errorf("cannot copy %s to %s: %w", l.paths.systemdSrc, l.paths.systemdDstHost, err)
	}

	if l.sess.IsImageMode() {
		// Override the fallback loader so the media boots without
		// relying on any firmware-side boot record.
		if err := fs.CopyAtomic(l.paths.fallbackDstHost, l.paths.systemdSrc, 0644); err != nil {
			logrus.WithFields(logrus.Fields{"src": l.paths.systemdSrc, "dst": l.paths.fallbackDstHost}).Error("cannot copy fallback loader")
			return fmt.Errorf("cannot copy %s to %s: %w", l.paths.systemdSrc, l.paths.fallbackDstHost, err)
		}
		return nil
	}

	if !l.hasBootRecord() {
		name, err := l.records.Create(l.sess.BootRoot(), l.paths.shimDstESP)
		if err != nil {
			logrus.WithField("path", l.paths.shimDstESP).WithError(err).Error("cannot create boot record")
			return fmt.Errorf("cannot create boot record for %s: %w", l.paths.shimDstESP, err)
		}
		l.bootRecord = bootRecordPresent
		logrus.WithField("variable", name).Debug("created boot record")
	}

	return l.writeFallbackCSV()
}

// Update re-runs the install procedure: content differences are resolved by
// the same idempotent file placement, there is no delta path.
func (l *Loader) Update() error {
	return l.Install()
}

// Remove is deliberately not implemented. It reports success without
// touching the ESP or NVRAM; callers uninstalling the backend are expected
// to discard the whole ESP namespace themselves.
func (l *Loader) Remove() error {
	logrus.Warn("remove is not implemented for shim-systemd")
	return nil
}
