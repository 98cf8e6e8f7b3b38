// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import (
	"fmt"
	"io"

	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// Translate returns the host physical address gpa is mapped to.
func (t *Tree) Translate(gpa physmem.Addr) (physmem.Addr, error) {
	page, err := t.hostPage(gpa)
	if err != nil {
		return 0, err
	}

	return page.Addr() + physmem.Addr(gpa.PageOffset()), nil
}

// HostBytes returns the host memory backing gpa up to the end of its page.
func (t *Tree) HostBytes(gpa physmem.Addr) ([]byte, error) {
	page, err := t.hostPage(gpa)
	if err != nil {
		return nil, err
	}

	return t.alloc.Bytes(page)[gpa.PageOffset():], nil
}

func (t *Tree) hostPage(gpa physmem.Addr) (physmem.Page, error) {
	if page, ok := t.tlb.lookup(gpa); ok {
		return page, nil
	}

	entry, err := t.Lookup(gpa, false)
	if err != nil {
		return 0, err
	}

	if !entry.Present() {
		return 0, fmt.Errorf("%w: gpa %s not mapped", sys.ErrMissingEntry, gpa)
	}

	page := physmem.PageOf(entry.Address())
	t.tlb.fill(gpa, page)

	return page, nil
}

var _ io.ReaderAt = (*Tree)(nil)

// ReadAt reads guest physical memory starting at off. It implements
// [io.ReaderAt]. Reading unmapped memory fails with [sys.ErrMissingEntry].
func (t *Tree) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset", sys.ErrInvalidArgument)
	}

	var read int

	for read < len(p) {
		mem, err := t.HostBytes(physmem.Addr(off) + physmem.Addr(read))
		if err != nil {
			return read, err
		}

		read += copy(p[read:], mem)
	}

	return read, nil
}

// Walk calls fn for every present leaf entry in ascending guest physical
// address order. It stops at the first error fn returns.
func (t *Tree) Walk(fn func(gpa physmem.Addr, entry Entry) error) error {
	if !t.valid {
		return fmt.Errorf("%w: no tree root", sys.ErrInvalidArgument)
	}

	return t.walkLevel(t.table(t.root), Levels-1, 0, fn)
}

func (t *Tree) walkLevel(
	table *Table,
	level int,
	base physmem.Addr,
	fn func(physmem.Addr, Entry) error,
) error {
	for idx, entry := range table {
		if !entry.Present() {
			continue
		}

		gpa := base + physmem.Addr(idx)*LevelSize(level)

		if level == 0 {
			if err := fn(gpa, entry); err != nil {
				return err
			}

			continue
		}

		next := t.table(physmem.PageOf(entry.Address()))
		if err := t.walkLevel(next, level-1, gpa, fn); err != nil {
			return err
		}
	}

	return nil
}

// Leaves returns the number of mapped guest pages.
func (t *Tree) Leaves() int {
	var leaves int

	_ = t.Walk(func(physmem.Addr, Entry) error {
		leaves++
		return nil
	})

	return leaves
}
