// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import (
	"fmt"

	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// LeafFlags are added to every mapping installed by [Tree.MapHostToGuest].
// Guest memory is ordinary write-back host memory.
const LeafFlags = Entry(TypeWriteBack)<<memTypeShift | IgnorePAT

// Insert maps page at the page aligned gpa with the given flags. flags must
// grant at least one access permission.
//
// The tree takes a reference on page. A page mapped at gpa before is
// replaced and its reference dropped. On error no reference count is
// changed.
func (t *Tree) Insert(page physmem.Page, gpa physmem.Addr, flags Entry) error {
	if !gpa.PageAligned() {
		return fmt.Errorf("%w: gpa %s not page aligned", sys.ErrInvalidArgument, gpa)
	}

	if flags&Full == 0 || flags&AddrMask != 0 {
		return fmt.Errorf("%w: flags %#x", sys.ErrInvalidArgument, uint64(flags))
	}

	entry, err := t.Lookup(gpa, true)
	if err != nil {
		return err
	}

	t.install(entry, page, gpa, flags)

	return nil
}

// Remove unmaps the page at gpa and drops its reference.
func (t *Tree) Remove(gpa physmem.Addr) error {
	entry, err := t.Lookup(gpa, false)
	if err != nil {
		return err
	}

	if !entry.Present() {
		return fmt.Errorf("%w: gpa %s not mapped", sys.ErrMissingEntry, gpa)
	}

	old := *entry
	*entry = 0

	t.alloc.DecRef(physmem.PageOf(old.Address()))
	t.tlb.invalidate(gpa)

	return nil
}

// MapHostToGuest maps the page backing the host virtual address hva at gpa
// with the given permission. [LeafFlags] are always added.
//
// If gpa is mapped already, [sys.ErrAlreadyMapped] is returned unless
// overwrite is true. In that case the old page's reference is dropped.
// perm must be a non-empty combination of [Read], [Write] and [Exec], where
// [Write] requires [Read]. Both addresses must be page aligned.
func (t *Tree) MapHostToGuest(
	space HostSpace,
	hva physmem.Addr,
	gpa physmem.Addr,
	perm Entry,
	overwrite bool,
) error {
	if !checkLeafPerm(perm) {
		return fmt.Errorf("%w: perm %#x", sys.ErrInvalidArgument, uint64(perm))
	}

	if !hva.PageAligned() || !gpa.PageAligned() {
		return fmt.Errorf("%w: hva %s or gpa %s not page aligned",
			sys.ErrInvalidArgument, hva, gpa)
	}

	page, err := space.Translate(hva)
	if err != nil {
		return fmt.Errorf("resolve hva: %w", err)
	}

	entry, err := t.Lookup(gpa, true)
	if err != nil {
		return err
	}

	if entry.Present() && !overwrite {
		return fmt.Errorf("%w: gpa %s", sys.ErrAlreadyMapped, gpa)
	}

	t.install(entry, page, gpa, perm|LeafFlags)

	return nil
}

func (t *Tree) install(entry *Entry, page physmem.Page, gpa physmem.Addr, flags Entry) {
	// Take the new reference before dropping the old one, so re-inserting
	// the same page does not reclaim it in between.
	t.alloc.IncRef(page)

	old := *entry
	*entry = NewEntry(page.Addr(), flags)

	if old.Present() {
		t.alloc.DecRef(physmem.PageOf(old.Address()))
	}

	t.tlb.invalidate(gpa)
}
