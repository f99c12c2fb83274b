// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package shimsystemd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/canonical/shimboot/espfs"
)

// Source directories under the prefix and destination names on the ESP.
// The destination file names are our own convention and are used verbatim;
// only components that may already exist on the FAT filesystem (EFI, Boot,
// the fallback loader) are probed for their on-disk casing.
const (
	shimSrcDir    = "usr/lib/shim"
	systemdSrcDir = "usr/lib/systemd/boot/efi"

	espEFI  = "EFI"
	espBoot = "Boot"

	kernelDstDir = "kernel"
	configDir    = "loader"
	entriesDir   = "entries"
)

var appArchitecture = ""

// efiArchitecture returns the EFI name of the machine architecture, for
// example x64 on amd64.
func efiArchitecture() string {
	if appArchitecture == "" {
		switch runtime.GOARCH {
		case "amd64":
			appArchitecture = "x64"
		case "386":
			appArchitecture = "ia32"
		case "arm64":
			appArchitecture = "aa64"
		case "arm":
			appArchitecture = "arm"
		}
	}
	return appArchitecture
}

// resolvedPaths holds every path the backend reads or writes. All of them
// are computed once at init and reused verbatim for the whole session;
// re-resolving could observe different casing if the ESP changes.
type resolvedPaths struct {
	shimSrc    string // source shim image under the prefix
	systemdSrc string // source systemd-boot image under the prefix

	shimDstHost    string // shim destination, host-absolute
	shimDstESP     string // shim destination, ESP-relative, for boot records
	systemdDstHost string // systemd-boot destination, host-absolute

	fallbackDstHost string // firmware-default fallback loader, image mode only
	csvDstHost      string // shim fallback restore CSV

	kernelDstHost  string // kernel directory, host-absolute
	kernelDstESP   string // kernel directory, ESP-relative, for loader entries
	entriesDstHost string // loader configuration entries directory
}

func resolvePaths(fs espfs.FS, prefix, bootRoot, vendor string) (*resolvedPaths, error) {
	arch := efiArchitecture()
	if arch == "" {
		return nil, fmt.Errorf("unsupported architecture %s", runtime.GOARCH)
	}
	upper := strings.ToUpper(arch)

	p := &resolvedPaths{
		shimSrc:        filepath.Join(prefix, shimSrcDir, "shim"+arch+".efi"),
		systemdSrc:     filepath.Join(prefix, systemdSrcDir, "systemd-boot"+arch+".efi"),
		entriesDstHost: filepath.Join(bootRoot, configDir, entriesDir),
	}

	var err error
	if p.shimDstHost, err = fs.CaseCorrectPath(bootRoot, espEFI, vendor, "bootloader"+arch+".efi"); err != nil {
		return nil, err
	}
	if p.systemdDstHost, err = fs.CaseCorrectPath(bootRoot, espEFI, vendor, "loader"+arch+".efi"); err != nil {
		return nil, err
	}
	if p.fallbackDstHost, err = fs.CaseCorrectPath(bootRoot, espEFI, espBoot, "BOOT"+upper+".EFI"); err != nil {
		return nil, err
	}
	if p.csvDstHost, err = fs.CaseCorrectPath(bootRoot, espEFI, vendor, "BOOT"+upper+".CSV"); err != nil {
		return nil, err
	}
	if p.kernelDstHost, err = fs.CaseCorrectPath(bootRoot, espEFI, vendor, kernelDstDir); err != nil {
		return nil, err
	}

	p.shimDstESP = strings.TrimPrefix(p.shimDstHost, bootRoot)
	p.kernelDstESP = strings.TrimPrefix(p.kernelDstHost, bootRoot)

	return p, nil
}
