// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept_test

import (
	"testing"

	"github.com/aibor/eptvmm/internal/addrspace"
	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mem   *physmem.Memory
	space *addrspace.Space
	tree  *ept.Tree
}

func newFixture(t *testing.T, numPages int) *fixture {
	t.Helper()

	mem, err := physmem.New(numPages, physmem.WithBacking(physmem.BackingHeap))
	require.NoError(t, err)

	t.Cleanup(func() { _ = mem.Close() })

	tree, err := ept.New(mem)
	require.NoError(t, err)

	return &fixture{
		mem:   mem,
		space: addrspace.New(mem),
		tree:  tree,
	}
}

// hostPage allocates a page, fills it with fill and maps it at va in the
// fixture's host space. The returned page has one reference held by the
// space.
func (f *fixture) hostPage(t *testing.T, va physmem.Addr, fill byte) physmem.Page {
	t.Helper()

	page, err := f.mem.Alloc(false)
	require.NoError(t, err)

	buf := f.mem.Bytes(page)
	for idx := range buf {
		buf[idx] = fill
	}

	require.NoError(t, f.space.Map(va, page, addrspace.PermReadWrite))

	return page
}
