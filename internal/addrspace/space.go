// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package addrspace provides host virtual address spaces. A space maps page
// aligned virtual addresses to physical pages, holding one reference on each
// mapped page.
package addrspace

import (
	"fmt"

	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
	"github.com/google/btree"
)

const btreeDegree = 8

// Perm is a host mapping permission mask.
type Perm uint8

// Host mapping permissions.
const (
	PermRead Perm = 1 << iota
	PermWrite

	PermReadWrite = PermRead | PermWrite
)

// Pages is the part of the physical allocator a [Space] needs.
type Pages interface {
	IncRef(page physmem.Page)
	DecRef(page physmem.Page)
	Bytes(page physmem.Page) []byte
}

type mapping struct {
	va   physmem.Addr
	page physmem.Page
	perm Perm
}

func lessMapping(a, b mapping) bool {
	return a.va < b.va
}

// Space is a host virtual address space.
//
// A Space is not safe for concurrent use.
type Space struct {
	pages    Pages
	mappings *btree.BTreeG[mapping]
}

// New creates an empty [Space] mapping pages of the given allocator.
func New(pages Pages) *Space {
	return &Space{
		pages:    pages,
		mappings: btree.NewG(btreeDegree, lessMapping),
	}
}

// Map maps the page at the page aligned virtual address. An existing mapping
// at the address is replaced. The space takes a reference on the page and
// drops the one of a replaced page.
func (s *Space) Map(va physmem.Addr, page physmem.Page, perm Perm) error {
	if !va.PageAligned() {
		return fmt.Errorf("%w: va %s not page aligned", sys.ErrInvalidArgument, va)
	}

	if perm&PermRead == 0 || perm&^PermReadWrite != 0 {
		return fmt.Errorf("%w: perm %#x", sys.ErrInvalidArgument, perm)
	}

	// Take the new reference first so remapping the same page does not
	// reclaim it in between.
	s.pages.IncRef(page)

	old, replaced := s.mappings.ReplaceOrInsert(mapping{va: va, page: page, perm: perm})
	if replaced {
		s.pages.DecRef(old.page)
	}

	return nil
}

// Unmap removes the mapping at the page containing va and drops its page
// reference. Unmapping an address that is not mapped does nothing.
func (s *Space) Unmap(va physmem.Addr) {
	old, ok := s.mappings.Delete(mapping{va: va.PageDown()})
	if ok {
		s.pages.DecRef(old.page)
	}
}

// Lookup returns the page and permission mapped at the page containing va.
func (s *Space) Lookup(va physmem.Addr) (physmem.Page, Perm, bool) {
	m, ok := s.mappings.Get(mapping{va: va.PageDown()})
	if !ok {
		return 0, 0, false
	}

	return m.page, m.perm, true
}

// Translate returns the physical page backing the given virtual address.
func (s *Space) Translate(va physmem.Addr) (physmem.Page, error) {
	page, _, ok := s.Lookup(va)
	if !ok {
		return 0, fmt.Errorf("%w: va %s not mapped", sys.ErrInvalidArgument, va)
	}

	return page, nil
}

// Bytes returns the host memory from va up to the end of its page. Writing
// requires [PermWrite].
func (s *Space) Bytes(va physmem.Addr, write bool) ([]byte, error) {
	page, perm, ok := s.Lookup(va)
	if !ok {
		return nil, fmt.Errorf("%w: va %s not mapped", sys.ErrInvalidArgument, va)
	}

	if write && perm&PermWrite == 0 {
		return nil, fmt.Errorf("%w: va %s not writable", sys.ErrInvalidArgument, va)
	}

	return s.pages.Bytes(page)[va.PageOffset():], nil
}

// Len returns the number of mapped pages.
func (s *Space) Len() int {
	return s.mappings.Len()
}

// Clear removes all mappings and drops their page references.
func (s *Space) Clear() {
	s.mappings.Ascend(func(m mapping) bool {
		s.pages.DecRef(m.page)
		return true
	})
	s.mappings.Clear(false)
}
