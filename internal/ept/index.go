// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import (
	"unsafe"

	"github.com/aibor/eptvmm/internal/physmem"
)

const (
	// Levels is the depth of the tree. Level 0 is the leaf level.
	Levels = 4

	// EntriesPerTable is the number of entries of each table.
	EntriesPerTable = physmem.PageSize / 8

	indexBits = 9
	indexMask = EntriesPerTable - 1
)

// MaxAddr is the first guest physical address the tree can not translate.
const MaxAddr physmem.Addr = 1 << (physmem.PageShift + indexBits*Levels)

// Table is the in-memory layout of a table page.
type Table [EntriesPerTable]Entry

// IndexAt returns the index into the table of the given level for addr.
//
// Level n uses the 9 address bits starting at bit 12+9n, so level 0 covers
// bits 12-20 and level 3 covers bits 39-47. Bits above 47 are ignored.
func IndexAt(addr physmem.Addr, level int) int {
	return int(addr>>LevelShift(level)) & indexMask
}

// LevelShift returns the number of address bits below the index window of
// the given level.
func LevelShift(level int) uint {
	return physmem.PageShift + indexBits*uint(level)
}

// LevelSize returns the size of the guest physical range covered by a single
// entry of the given level.
func LevelSize(level int) physmem.Addr {
	return 1 << LevelShift(level)
}

// tableOf interprets the page memory as table. The memory must be page
// aligned, which arena memory is.
func tableOf(mem []byte) *Table {
	return (*Table)(unsafe.Pointer(unsafe.SliceData(mem)))
}
