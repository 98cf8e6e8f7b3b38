// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import (
	"fmt"

	"github.com/aibor/eptvmm/internal/physmem"
)

// Entry is an extended page table entry.
type Entry uint64

// Bits in extended page table entries.
const (
	Read  Entry = 1 << 0
	Write Entry = 1 << 1
	Exec  Entry = 1 << 2

	// Full grants all access permissions.
	Full = Read | Write | Exec

	// IgnorePAT makes the entry's memory type take precedence over the
	// guest's page attribute table.
	IgnorePAT Entry = 1 << 6

	memTypeShift       = 3
	memTypeMask  Entry = 0x7 << memTypeShift

	// AddrMask covers the physical address bits of an entry.
	AddrMask Entry = 0x000f_ffff_ffff_f000

	// FlagsMask covers all non address bits of an entry.
	FlagsMask = ^AddrMask
)

// MemoryType is the caching type of a mapping.
type MemoryType uint8

// Memory types used for leaf entries.
const (
	TypeUncacheable MemoryType = 0
	TypeWriteBack   MemoryType = 6
)

// Entry returns the type encoded in entry bits.
func (t MemoryType) Entry() Entry {
	return Entry(t) << memTypeShift
}

// NewEntry creates an entry for the page aligned physical address with the
// given flags. Address bits in flags and flag bits in addr are dropped.
func NewEntry(addr physmem.Addr, flags Entry) Entry {
	return Entry(addr)&AddrMask | flags&FlagsMask
}

// Address returns the physical address the entry points to.
func (e Entry) Address() physmem.Addr {
	return physmem.Addr(e & AddrMask)
}

// Flags returns the entry with the address masked out.
func (e Entry) Flags() Entry {
	return e & FlagsMask
}

// Perm returns the access permission bits.
func (e Entry) Perm() Entry {
	return e & Full
}

// MemoryType returns the entry's memory type.
func (e Entry) MemoryType() MemoryType {
	return MemoryType((e & memTypeMask) >> memTypeShift)
}

// Present returns true if any access permission is set. Entries without any
// permission are not present.
func (e Entry) Present() bool {
	return e&Full != 0
}

func (e Entry) String() string {
	perm := []byte("---")

	for idx, bit := range []Entry{Read, Write, Exec} {
		if e&bit != 0 {
			perm[idx] = "rwx"[idx]
		}
	}

	return fmt.Sprintf("%s %s type=%d", e.Address(), perm, e.MemoryType())
}

// checkLeafPerm validates permissions for a leaf mapping. At least one access
// bit must be set and write access requires read access, like the hardware
// does.
func checkLeafPerm(perm Entry) bool {
	if perm&^Full != 0 || perm == 0 {
		return false
	}

	return perm&Write == 0 || perm&Read != 0
}
