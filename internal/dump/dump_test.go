// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dump_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/eptvmm/internal/addrspace"
	"github.com/aibor/eptvmm/internal/dump"
	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	mode cpio.FileMode
	body []byte
}

func newTree(t *testing.T, pages map[physmem.Addr]ept.Entry) *ept.Tree {
	t.Helper()

	mem, err := physmem.New(16, physmem.WithBacking(physmem.BackingHeap))
	require.NoError(t, err)

	t.Cleanup(func() { _ = mem.Close() })

	tree, err := ept.New(mem)
	require.NoError(t, err)

	space := addrspace.New(mem)
	hva := physmem.Addr(0x400000)

	for gpa, perm := range pages {
		page, err := mem.Alloc(false)
		require.NoError(t, err)

		buf := mem.Bytes(page)
		for idx := range buf {
			buf[idx] = byte(gpa >> physmem.PageShift)
		}

		require.NoError(t, space.Map(hva, page, addrspace.PermReadWrite))
		require.NoError(t, tree.MapHostToGuest(space, hva, gpa, perm, false))

		hva += physmem.PageSize
	}

	return tree
}

func readArchive(t *testing.T, r io.Reader) ([]string, map[string]entry) {
	t.Helper()

	var names []string

	entries := map[string]entry{}
	cpioReader := cpio.NewReader(r)

	for {
		hdr, err := cpioReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		require.NoError(t, err)

		body, err := io.ReadAll(cpioReader)
		require.NoError(t, err)

		names = append(names, hdr.Name)
		entries[hdr.Name] = entry{mode: hdr.Mode, body: body}
	}

	return names, entries
}

func TestMemory(t *testing.T) {
	tree := newTree(t, map[physmem.Addr]ept.Entry{
		0x7000: ept.Read | ept.Exec,
		0x1000: ept.Full,
		0x2000: ept.Read,
	})

	var archive bytes.Buffer

	w := dump.NewWriter(&archive)
	require.NoError(t, dump.Memory(w, tree))
	require.NoError(t, w.Close())

	names, entries := readArchive(t, &archive)

	expectedNames := []string{
		"memory",
		"memory/0000000000001000",
		"memory/0000000000002000",
		"memory/0000000000007000",
		"layout",
	}
	assert.Equal(t, expectedNames, names)

	assert.True(t, entries["memory"].mode&cpio.TypeDir != 0)

	tests := []struct {
		gpa  physmem.Addr
		mode cpio.FileMode
	}{
		{gpa: 0x1000, mode: 0o777},
		{gpa: 0x2000, mode: 0o444},
		{gpa: 0x7000, mode: 0o555},
	}

	for _, tt := range tests {
		t.Run(tt.gpa.String(), func(t *testing.T) {
			actual := entries[dump.PageName(tt.gpa)]
			assert.Equal(t, tt.mode, actual.mode&cpio.ModePerm)

			expected := bytes.Repeat([]byte{byte(tt.gpa >> physmem.PageShift)}, physmem.PageSize)
			assert.Equal(t, expected, actual.body)
		})
	}

	layout := string(entries["layout"].body)
	assert.Contains(t, layout, "0000000000001000 ")
	assert.Contains(t, layout, " rwx type=6\n")
	assert.Contains(t, layout, " r-x type=6\n")
}

func TestToFile(t *testing.T) {
	tree := newTree(t, map[physmem.Addr]ept.Entry{0x0: ept.Read})
	path := filepath.Join(t.TempDir(), "guest.cpio")

	require.NoError(t, dump.ToFile(path, tree))

	file, err := os.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = file.Close() })

	names, _ := readArchive(t, file)
	assert.Equal(t, []string{"memory", "memory/0000000000000000", "layout"}, names)

	t.Run("missing directory", func(t *testing.T) {
		err := dump.ToFile(filepath.Join(t.TempDir(), "missing", "guest.cpio"), tree)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
