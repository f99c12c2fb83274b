// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package espfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// CaseCorrectPath joins root with the given components, matching each
// component case-insensitively against the directory contents so that the
// result names what actually exists on a case-preserving FAT filesystem.
// Components that do not exist yet keep their requested casing.
//
// The returned path must be resolved once per session and reused: the ESP
// can change underneath us, and re-probing could observe different casing.
func (f FS) CaseCorrectPath(root string, components ...string) (string, error) {
	path := root
	for _, component := range components {
		entries, err := afero.ReadDir(f.fs, path)
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("cannot probe %s: %w", path, err)
		}
		name := component
		for _, entry := range entries {
			if strings.EqualFold(entry.Name(), component) {
				name = entry.Name()
				break
			}
		}
		path = filepath.Join(path, name)
	}
	return path, nil
}
