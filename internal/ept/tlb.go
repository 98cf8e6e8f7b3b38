// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import "github.com/aibor/eptvmm/internal/physmem"

// tlb caches guest page to host page translations of a tree.
type tlb struct {
	entries map[physmem.Page]physmem.Page
}

func newTLB() tlb {
	return tlb{entries: make(map[physmem.Page]physmem.Page)}
}

func (c *tlb) lookup(gpa physmem.Addr) (physmem.Page, bool) {
	page, ok := c.entries[physmem.PageOf(gpa)]
	return page, ok
}

func (c *tlb) fill(gpa physmem.Addr, page physmem.Page) {
	c.entries[physmem.PageOf(gpa)] = page
}

func (c *tlb) invalidate(gpa physmem.Addr) {
	delete(c.entries, physmem.PageOf(gpa))
}

func (c *tlb) flush() {
	clear(c.entries)
}
