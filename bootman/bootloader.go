// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootman

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Capability describes the partition table and firmware interface styles a
// bootloader backend supports.
type Capability uint32

const (
	// CapGPT means the backend can boot from GPT partition tables.
	CapGPT Capability = 1 << iota
	// CapUEFI means the backend drives UEFI firmware.
	CapUEFI
	// CapLegacy means the backend supports legacy BIOS boot.
	CapLegacy
)

// Bootloader is the contract every backend exposes to the host.
//
// Init and Destroy bracket a session; all other operations are only valid
// in between. NeedsInstall and NeedsUpdate are pure queries, Install and
// Update mutate the ESP (and, outside image mode, firmware NVRAM).
type Bootloader interface {
	Name() string
	Init(sess *Session) error
	Destroy()
	Capabilities() Capability

	KernelDestination() string
	InstallKernel(kernel *Kernel) error
	RemoveKernel(kernel *Kernel) error
	SetDefaultKernel(kernel *Kernel) error

	NeedsInstall() bool
	NeedsUpdate() bool
	Install() error
	Update() error
	Remove() error
}

// SelectBootloader picks the first backend whose capabilities cover the
// wanted mask and initializes it for the session. An init failure tears the
// backend down and aborts selection.
func SelectBootloader(sess *Session, wanted Capability, loaders []Bootloader) (Bootloader, error) {
	for _, loader := range loaders {
		if loader.Capabilities()&wanted != wanted {
			continue
		}
		logrus.WithField("bootloader", loader.Name()).Debug("selected bootloader")
		if err := loader.Init(sess); err != nil {
			loader.Destroy()
			return nil, fmt.Errorf("cannot initialise bootloader %s: %w", loader.Name(), err)
		}
		return loader, nil
	}
	return nil, fmt.Errorf("no bootloader supports the wanted capabilities %#x", uint32(wanted))
}
