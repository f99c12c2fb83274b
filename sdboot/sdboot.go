// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

// Package sdboot maintains systemd-boot kernel entries: it places kernel and
// initrd images on the ESP and keeps the loader configuration under
// /loader/entries in sync. Backends that chain-load systemd-boot delegate
// their per-kernel work here.
package sdboot

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/canonical/shimboot/bootman"
)

const (
	configDir  = "loader"
	entriesDir = "entries"
	loaderConf = "loader.conf"
)

// Config wires a Class to its owning backend.
type Config struct {
	// Vendor prefixes the entry file names.
	Vendor string
	// KernelDestination returns the ESP-relative directory kernel images
	// are installed to. The owning backend decides this; it is a function
	// because the backend resolves it during its own init.
	KernelDestination func() string
}

// Class installs kernels for one backend.
type Class struct {
	sess *bootman.Session
	cfg  Config
}

// New returns a Class operating on the given session.
func New(sess *bootman.Session, cfg Config) *Class {
	return &Class{sess: sess, cfg: cfg}
}

// Destroy releases the session reference. Safe to call on a partially
// initialized Class.
func (c *Class) Destroy() {
	c.sess = nil
}

func (c *Class) entryName(kernel *bootman.Kernel) string {
	return c.cfg.Vendor + "-" + kernel.Version
}

func (c *Class) entryPath(kernel *bootman.Kernel) string {
	return filepath.Join(c.sess.BootRoot(), configDir, entriesDir, c.entryName(kernel)+".conf")
}

func (c *Class) kernelDestHost() string {
	return filepath.Join(c.sess.BootRoot(), c.cfg.KernelDestination())
}

// InstallKernel copies the kernel image and initrd into the backend's
// kernel destination and writes the matching loader entry.
func (c *Class) InstallKernel(kernel *bootman.Kernel) error {
	fs := c.sess.FS()

	dstKernel := filepath.Join(c.kernelDestHost(), filepath.Base(kernel.Image))
	if err := fs.CopyAtomic(dstKernel, kernel.Image, 0644); err != nil {
		logrus.WithFields(logrus.Fields{"src": kernel.Image, "dst": dstKernel}).Error("cannot copy kernel image")
		return fmt.Errorf("cannot copy %s to %s: %w", kernel.Image, dstKernel, err)
	}
	if kernel.Initrd != "" {
		dstInitrd := filepath.Join(c.kernelDestHost(), filepath.Base(kernel.Initrd))
		if err := fs.CopyAtomic(dstInitrd, kernel.Initrd, 0644); err != nil {
			logrus.WithFields(logrus.Fields{"src": kernel.Initrd, "dst": dstInitrd}).Error("cannot copy initrd")
			return fmt.Errorf("cannot copy %s to %s: %w", kernel.Initrd, dstInitrd, err)
		}
	}

	entry := c.renderEntry(kernel)
	if err := fs.WriteAtomic(c.entryPath(kernel), []byte(entry), 0644); err != nil {
		return fmt.Errorf("cannot write loader entry for %s: %w", kernel.Version, err)
	}
	return nil
}

// renderEntry produces the systemd-boot entry file content for a kernel.
func (c *Class) renderEntry(kernel *bootman.Kernel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "title %s\n", c.cfg.Vendor)
	fmt.Fprintf(&b, "version %s\n", kernel.Version)
	fmt.Fprintf(&b, "linux %s\n", path.Join(c.cfg.KernelDestination(), filepath.Base(kernel.Image)))
	if kernel.Initrd != "" {
		fmt.Fprintf(&b, "initrd %s\n", path.Join(c.cfg.KernelDestination(), filepath.Base(kernel.Initrd)))
	}
	if kernel.Cmdline != "" {
		fmt.Fprintf(&b, "options %s\n", kernel.Cmdline)
	}
	return b.String()
}

// RemoveKernel deletes the loader entry and the installed images for a
// kernel. Files already gone are not an error.
func (c *Class) RemoveKernel(kernel *bootman.Kernel) error {
	fs := c.sess.FS()

	targets := []string{
		c.entryPath(kernel),
		filepath.Join(c.kernelDestHost(), filepath.Base(kernel.Image)),
	}
	if kernel.Initrd != "" {
		targets = append(targets, filepath.Join(c.kernelDestHost(), filepath.Base(kernel.Initrd)))
	}
	for _, target := range targets {
		if err := fs.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cannot remove %s: %w", target, err)
		}
	}
	return nil
}

// SetDefaultKernel points loader.conf at the given kernel's entry. A nil
// kernel clears the default and leaves entry selection to the loader.
func (c *Class) SetDefaultKernel(kernel *bootman.Kernel) error {
	var b strings.Builder
	b.WriteString("timeout 0\n")
	if kernel != nil {
		fmt.Fprintf(&b, "default %s\n", c.entryName(kernel))
	}

	target := filepath.Join(c.sess.BootRoot(), configDir, loaderConf)
	if err := c.sess.FS().WriteAtomic(target, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", target, err)
	}
	return nil
}
