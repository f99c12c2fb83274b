// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package sdboot

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/canonical/shimboot/bootman"
	"github.com/canonical/shimboot/espfs"
)

func testClass(memFs afero.Fs) *Class {
	sess := bootman.NewSessionWithFS(espfs.New(memFs), "/", "/boot", "ubuntu", false)
	return New(sess, Config{
		Vendor:            "ubuntu",
		KernelDestination: func() string { return "/EFI/ubuntu/kernel" },
	})
}

func testKernel() *bootman.Kernel {
	return &bootman.Kernel{
		Version: "5.15.0-91.101",
		Image:   "/usr/lib/kernel/vmlinuz-5.15.0-91.101",
		Initrd:  "/usr/lib/kernel/initrd-5.15.0-91.101",
		Cmdline: "root=magic quiet",
	}
}

func TestInstallKernel(t *testing.T) {
	memFs := afero.NewMemMapFs()
	afero.WriteFile(memFs, "/usr/lib/kernel/vmlinuz-5.15.0-91.101", []byte("kernel"), 0644)
	afero.WriteFile(memFs, "/usr/lib/kernel/initrd-5.15.0-91.101", []byte("initrd"), 0644)
	memFs.MkdirAll("/boot/EFI/ubuntu/kernel", 0755)
	memFs.MkdirAll("/boot/loader/entries", 0755)

	c := testClass(memFs)
	if err := c.InstallKernel(testKernel()); err != nil {
		t.Fatalf("Could not install kernel: %v", err)
	}

	kernelBytes, err := afero.ReadFile(memFs, "/boot/EFI/ubuntu/kernel/vmlinuz-5.15.0-91.101")
	if err != nil {
		t.Fatalf("Kernel image missing: %v", err)
	}
	if !bytes.Equal(kernelBytes, []byte("kernel")) {
		t.Errorf("Kernel image content mismatch")
	}

	entryBytes, err := afero.ReadFile(memFs, "/boot/loader/entries/ubuntu-5.15.0-91.101.conf")
	if err != nil {
		t.Fatalf("Loader entry missing: %v", err)
	}
	want := "title ubuntu\n" +
		"version 5.15.0-91.101\n" +
		"linux /EFI/ubuntu/kernel/vmlinuz-5.15.0-91.101\n" +
		"initrd /EFI/ubuntu/kernel/initrd-5.15.0-91.101\n" +
		"options root=magic quiet\n"
	if string(entryBytes) != want {
		t.Errorf("Entry does not match.\nexpected: %v\ngot:      %v", want, string(entryBytes))
	}
}

func TestInstallKernel_missingImage(t *testing.T) {
	memFs := afero.NewMemMapFs()
	memFs.MkdirAll("/boot/EFI/ubuntu/kernel", 0755)

	c := testClass(memFs)
	if err := c.InstallKernel(testKernel()); err == nil {
		t.Fatalf("Unexpected success")
	}
}

func TestRemoveKernel(t *testing.T) {
	memFs := afero.NewMemMapFs()
	afero.WriteFile(memFs, "/boot/EFI/ubuntu/kernel/vmlinuz-5.15.0-91.101", []byte("kernel"), 0644)
	afero.WriteFile(memFs, "/boot/EFI/ubuntu/kernel/initrd-5.15.0-91.101", []byte("initrd"), 0644)
	afero.WriteFile(memFs, "/boot/loader/entries/ubuntu-5.15.0-91.101.conf", []byte("entry"), 0644)

	c := testClass(memFs)
	if err := c.RemoveKernel(testKernel()); err != nil {
		t.Fatalf("Could not remove kernel: %v", err)
	}

	for _, path := range []string{
		"/boot/EFI/ubuntu/kernel/vmlinuz-5.15.0-91.101",
		"/boot/EFI/ubuntu/kernel/initrd-5.15.0-91.101",
		"/boot/loader/entries/ubuntu-5.15.0-91.101.conf",
	} {
		if ok, _ := afero.Exists(memFs, path); ok {
			t.Errorf("%s still exists", path)
		}
	}

	// Removing an absent kernel is not an error.
	if err := c.RemoveKernel(testKernel()); err != nil {
		t.Errorf("Second removal failed: %v", err)
	}
}

func TestSetDefaultKernel(t *testing.T) {
	memFs := afero.NewMemMapFs()
	memFs.MkdirAll("/boot/loader", 0755)

	c := testClass(memFs)
	if err := c.SetDefaultKernel(testKernel()); err != nil {
		t.Fatalf("Could not set default kernel: %v", err)
	}

	confBytes, err := afero.ReadFile(memFs, "/boot/loader/loader.conf")
	if err != nil {
		t.Fatalf("loader.conf missing: %v", err)
	}
	want := "timeout 0\ndefault ubuntu-5.15.0-91.101\n"
	if string(confBytes) != want {
		t.Errorf("Expected %q, got %q", want, string(confBytes))
	}

	if err := c.SetDefaultKernel(nil); err != nil {
		t.Fatalf("Could not clear default kernel: %v", err)
	}
	confBytes, _ = afero.ReadFile(memFs, "/boot/loader/loader.conf")
	if string(confBytes) != "timeout 0\n" {
		t.Errorf("Expected cleared default, got %q", string(confBytes))
	}
}
