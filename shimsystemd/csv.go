// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package shimsystemd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// fallbackEntry is one line of the BOOT*.CSV consumed by shim's fallback
// binary to re-create lost boot records.
type fallbackEntry struct {
	Filename    string
	Label       string
	Options     string
	Description string
}

// encodeFallbackCSV renders entries as UTF-16LE CSV. The format has no
// escaping, so fields containing a comma are rejected.
func encodeFallbackCSV(entries []fallbackEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder())
	for _, entry := range entries {
		if strings.Contains(entry.Filename, ",") ||
			strings.Contains(entry.Label, ",") ||
			strings.Contains(entry.Options, ",") ||
			strings.Contains(entry.Description, ",") {
			return nil, fmt.Errorf("entry '%s' contains ',' in one of the attributes, this is not supported", entry.Label)
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%s,%s\n", entry.Filename, entry.Label, entry.Options, entry.Description); err != nil {
			return nil, fmt.Errorf("cannot encode entry '%s': %w", entry.Label, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFallbackCSV places BOOT<ARCH>.CSV next to the shim so a lost boot
// record can be restored by the firmware fallback path.
func (l *Loader) writeFallbackCSV() error {
	vendor := l.sess.Vendor()
	data, err := encodeFallbackCSV([]fallbackEntry{{
		Filename:    filepath.Base(l.paths.shimDstHost),
		Label:       vendor,
		Description: "Boot entry for " + vendor,
	}})
	if err != nil {
		return err
	}
	if err := l.sess.FS().WriteAtomic(l.paths.csvDstHost, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", l.paths.csvDstHost, err)
	}
	return nil
}
