// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"bytes"
	"fmt"
	"path/filepath"

	efi "github.com/canonical/go-efilib"
	efi_linux "github.com/canonical/go-efilib/linux"
)

const (
	maxBootEntries = 65535 // Maximum number of boot entries we can hold

	// Description written into every boot record we create. Matching it
	// is part of recognizing our own records, so it must never change.
	bootRecordDescription = "Linux bootloader"
)

// bootRecordVariable is one parsed Boot<number> variable.
type bootRecordVariable struct {
	name  string                 // name of the Boot variable, for example Boot0004
	data  []byte                 // the data of the variable
	attrs efi.VariableAttributes // any attributes set on the variable
}

// BootRecords is a snapshot of the firmware boot device selection menu
// entries. It is read once at subsystem initialization and kept consistent
// with our own mutations; racing external writers are not re-observed.
type BootRecords struct {
	vars    EFIVariables
	entries map[int]bootRecordVariable
}

// NewBootRecords enumerates the Boot#### variables from firmware NVRAM.
func NewBootRecords() (*BootRecords, error) {
	return newBootRecordsFromVariables(appEFIVars)
}

func newBootRecordsFromVariables(vars EFIVariables) (*BootRecords, error) {
	if !variablesSupported(vars) {
		return nil, fmt.Errorf("EFI variables not supported on this system")
	}

	br := &BootRecords{vars: vars, entries: make(map[int]bootRecordVariable)}

	names, err := GetVariableNames(vars, efi.GlobalVariable)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain list of global variables: %v", err)
	}
	for _, name := range names {
		var number int
		if parsed, err := fmt.Sscanf(name, "Boot%04X", &number); len(name) != 8 || parsed != 1 || err != nil {
			continue
		}
		data, attrs, err := vars.GetVariable(efi.GlobalVariable, name)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %v", name, err)
		}
		br.entries[number] = bootRecordVariable{name: name, data: data, attrs: attrs}
	}

	return br, nil
}

// loadOptionBytes builds the serialized load option a boot record pointing
// at espRelPath on the ESP mounted at espRoot would carry.
func (br *BootRecords) loadOptionBytes(espRoot, espRelPath string) ([]byte, error) {
	dp, err := br.vars.NewFileDevicePath(filepath.Join(espRoot, espRelPath), efi_linux.ShortFormPathHD)
	if err != nil {
		return nil, fmt.Errorf("cannot generate device path for %s: %w", espRelPath, err)
	}
	option := &efi.LoadOption{
		Attributes:  efi.LoadOptionActive,
		Description: bootRecordDescription,
		FilePath:    dp,
	}
	return option.Bytes()
}

// Exists reports whether a boot record pointing at espRelPath already exists.
func (br *BootRecords) Exists(espRoot, espRelPath string) (bool, error) {
	want, err := br.loadOptionBytes(espRoot, espRelPath)
	if err != nil {
		return false, err
	}
	for _, entry := range br.entries {
		if bytes.Equal(entry.data, want) {
			return true, nil
		}
	}
	return false, nil
}

// Create writes a boot record pointing at espRelPath and returns the name of
// the variable holding it. If a byte-identical record already exists its
// name is returned and nothing is written.
func (br *BootRecords) Create(espRoot, espRelPath string) (string, error) {
	want, err := br.loadOptionBytes(espRoot, espRelPath)
	if err != nil {
		return "", err
	}
	for _, entry := range br.entries {
		if bytes.Equal(entry.data, want) {
			return entry.name, nil
		}
	}

	slot, err := br.nextFreeSlot()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("Boot%04X", slot)
	attrs := efi.AttributeNonVolatile | efi.AttributeBootserviceAccess | efi.AttributeRuntimeAccess
	if err := br.vars.SetVariable(efi.GlobalVariable, name, want, attrs); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", name, err)
	}
	br.entries[slot] = bootRecordVariable{name: name, data: want, attrs: attrs}

	// TODO: prepend the new record to BootOrder
	return name, nil
}

// nextFreeSlot returns the number of the first unused Boot variable.
func (br *BootRecords) nextFreeSlot() (int, error) {
	for i := 0; i < maxBootEntries; i++ {
		if _, ok := br.entries[i]; !ok {
			return i, nil
		}
	}
	return -1, fmt.Errorf("maximum number of boot entries exceeded")
}
