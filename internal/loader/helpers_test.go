// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader_test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/eptvmm/internal/guest"
	"github.com/aibor/eptvmm/internal/loader"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/stretchr/testify/require"
)

const (
	elfHeaderSize  = 64
	progHeaderSize = 56
)

type fixture struct {
	mem    *physmem.Memory
	loader *loader.Loader
	guest  *guest.Guest
}

func newFixture(t *testing.T, numPages int, memSize physmem.Addr) *fixture {
	t.Helper()

	mem, err := physmem.New(numPages, physmem.WithBacking(physmem.BackingHeap))
	require.NoError(t, err)

	t.Cleanup(func() { _ = mem.Close() })

	l, err := loader.New(mem)
	require.NoError(t, err)

	manager := guest.NewManager(mem, nil)

	g, err := manager.Create(memSize, 0)
	require.NoError(t, err)

	t.Cleanup(func() { _ = manager.Destroy(g) })

	return &fixture{
		mem:    mem,
		loader: l,
		guest:  g,
	}
}

// readGuest reads size bytes of guest physical memory at gpa.
func (f *fixture) readGuest(t *testing.T, gpa physmem.Addr, size int) []byte {
	t.Helper()

	buf := make([]byte, size)

	_, err := f.guest.ReadAt(buf, int64(gpa))
	require.NoError(t, err)

	return buf
}

// pattern returns size bytes of non-zero content.
func pattern(size int) []byte {
	data := make([]byte, size)
	for idx := range data {
		data[idx] = byte(idx%251) + 1
	}

	return data
}

// buildELF returns an ELF64 executable of the given size. The file content
// is [pattern] overlaid with the ELF header and the program headers.
func buildELF(t *testing.T, machine elf.Machine, entry uint64, progs []elf.Prog64, size int) []byte {
	t.Helper()

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     elfHeaderSize,
		Ehsize:    elfHeaderSize,
		Phentsize: progHeaderSize,
		Phnum:     uint16(len(progs)),
	}

	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	var buf bytes.Buffer

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	for _, prog := range progs {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, prog))
	}

	data := pattern(size)
	require.GreaterOrEqual(t, len(data), buf.Len(), "file too small for headers")
	copy(data, buf.Bytes())

	return data
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kernel")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func loadSegment(off, filesz, memsz, paddr uint64) elf.Prog64 {
	return elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    off,
		Vaddr:  paddr,
		Paddr:  paddr,
		Filesz: filesz,
		Memsz:  memsz,
		Align:  physmem.PageSize,
	}
}
