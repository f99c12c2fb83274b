// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package bootman

import (
	"reflect"
	"testing"
)

func TestSortKernels(t *testing.T) {
	kernels := []*Kernel{
		{Version: "5.15.0-91.101"},
		{Version: "5.15.0-100.110"},
		{Version: "5.15.0-91.100"},
	}
	SortKernels(kernels)

	var got []string
	for _, k := range kernels {
		got = append(got, k.Version)
	}
	want := []string{"5.15.0-91.100", "5.15.0-91.101", "5.15.0-100.110"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestSortKernels_unparseableFallsBackToLexicographic(t *testing.T) {
	kernels := []*Kernel{
		{Version: "not a version b"},
		{Version: "not a version a"},
	}
	SortKernels(kernels)
	if kernels[0].Version != "not a version a" {
		t.Errorf("unexpected order: %v, %v", kernels[0].Version, kernels[1].Version)
	}
}

func TestNewestKernel(t *testing.T) {
	if NewestKernel(nil) != nil {
		t.Errorf("expected nil for empty slice")
	}

	kernels := []*Kernel{
		{Version: "5.15.0-91.101"},
		{Version: "5.15.0-100.110"},
		{Version: "5.15.0-91.100"},
	}
	newest := NewestKernel(kernels)
	if newest.Version != "5.15.0-100.110" {
		t.Errorf("expected 5.15.0-100.110, got %s", newest.Version)
	}
}
