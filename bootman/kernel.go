// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootman

import (
	"sort"

	deb_version "github.com/knqyf263/go-deb-version"
)

// Kernel describes one installable kernel: its version identity and the
// source images to place on the ESP.
type Kernel struct {
	Version string // version identifier, used for entry naming and ordering
	Image   string // path to the kernel image under the source prefix
	Initrd  string // path to the initrd, empty if none
	Cmdline string // kernel command line options
}

// Less orders kernels by version, oldest first. Versions are compared as
// Debian version strings; unparseable versions fall back to lexicographic
// order.
func (k *Kernel) Less(other *Kernel) bool {
	v1, err1 := deb_version.NewVersion(k.Version)
	v2, err2 := deb_version.NewVersion(other.Version)
	if err1 != nil || err2 != nil {
		return k.Version < other.Version
	}
	return v1.LessThan(v2)
}

// SortKernels sorts kernels in place, oldest version first.
func SortKernels(kernels []*Kernel) {
	sort.SliceStable(kernels, func(i, j int) bool {
		return kernels[i].Less(kernels[j])
	})
}

// NewestKernel returns the kernel with the highest version, or nil if the
// slice is empty.
func NewestKernel(kernels []*Kernel) *Kernel {
	var newest *Kernel
	for _, kernel := range kernels {
		if newest == nil || newest.Less(kernel) {
			newest = kernel
		}
	}
	return newest
}
