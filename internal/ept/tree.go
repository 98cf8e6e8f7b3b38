// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import (
	"fmt"

	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// Allocator provides the host physical pages tables and guest memory are
// built from.
type Allocator interface {
	// Alloc returns an unreferenced page, zeroed if requested.
	Alloc(zero bool) (physmem.Page, error)

	// IncRef takes a reference on the page.
	IncRef(page physmem.Page)

	// DecRef drops a reference. The page is reclaimed at zero.
	DecRef(page physmem.Page)

	// Bytes returns the host memory backing the page.
	Bytes(page physmem.Page) []byte
}

// HostSpace resolves host virtual addresses to their backing physical page.
type HostSpace interface {
	Translate(va physmem.Addr) (physmem.Page, error)
}

// Tree is an extended page table tree.
type Tree struct {
	alloc Allocator

	// root is the top level table. It is owned by the tree and only
	// released by Release.
	root  physmem.Page
	valid bool

	// tables is the number of intermediate tables currently allocated.
	tables int

	tlb tlb
}

// New allocates the root table of a new [Tree].
func New(alloc Allocator) (*Tree, error) {
	root, err := alloc.Alloc(true)
	if err != nil {
		return nil, fmt.Errorf("allocate root table: %w", err)
	}

	alloc.IncRef(root)

	return &Tree{
		alloc: alloc,
		root:  root,
		valid: true,
		tlb:   newTLB(),
	}, nil
}

// Root returns the physical address of the root table.
func (t *Tree) Root() physmem.Addr {
	return t.root.Addr()
}

// Tables returns the number of allocated intermediate tables, not counting
// the root.
func (t *Tree) Tables() int {
	return t.tables
}

func (t *Tree) table(page physmem.Page) *Table {
	return tableOf(t.alloc.Bytes(page))
}

// Lookup walks the tree for gpa and returns the leaf level entry responsible
// for it. The returned entry may not be present.
//
// If create is true, missing intermediate tables are allocated and installed
// with [Full] permissions. Otherwise the walk fails with
// [sys.ErrMissingEntry] at the first missing table. Addresses from [MaxAddr]
// on fail with [sys.ErrInvalidArgument]. [sys.ErrOutOfMemory] is
// returned if a table can not be allocated. Tables allocated before the
// failure stay in place.
func (t *Tree) Lookup(gpa physmem.Addr, create bool) (*Entry, error) {
	if t == nil || !t.valid {
		return nil, fmt.Errorf("%w: no tree root", sys.ErrInvalidArgument)
	}

	if gpa >= MaxAddr {
		return nil, fmt.Errorf("%w: gpa %s beyond %s", sys.ErrInvalidArgument, gpa, MaxAddr)
	}

	table := t.table(t.root)

	for level := Levels - 1; level > 0; level-- {
		entry := &table[IndexAt(gpa, level)]

		if !entry.Present() {
			if !create {
				return nil, fmt.Errorf("%w: gpa %s level %d", sys.ErrMissingEntry, gpa, level)
			}

			page, err := t.alloc.Alloc(true)
			if err != nil {
				return nil, fmt.Errorf("allocate level %d table: %w", level-1, err)
			}

			t.alloc.IncRef(page)
			*entry = NewEntry(page.Addr(), Full)
			t.tables++
		}

		table = t.table(physmem.PageOf(entry.Address()))
	}

	return &table[IndexAt(gpa, 0)], nil
}

// Release tears down the whole tree and drops the root table. The tree must
// not be used afterwards.
func (t *Tree) Release() {
	if !t.valid {
		return
	}

	t.FreeAll()
	t.alloc.DecRef(t.root)
	t.valid = false
}
