// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package physmem

import "fmt"

const (
	// PageShift is the number of address bits covered by a single page.
	PageShift = 12

	// PageSize is the size of a host page in bytes.
	PageSize = 1 << PageShift
)

// Addr is a physical address. Depending on the context it is a host physical
// or a guest physical address.
type Addr uint64

// PageAligned returns true if the address is at a page boundary.
func (a Addr) PageAligned() bool {
	return a.PageOffset() == 0
}

// PageDown rounds the address down to the start of its page.
func (a Addr) PageDown() Addr {
	return a &^ (PageSize - 1)
}

// PageUp rounds the address up to the next page boundary.
func (a Addr) PageUp() Addr {
	return (a + PageSize - 1).PageDown()
}

// PageOffset returns the offset of the address within its page.
func (a Addr) PageOffset() uint64 {
	return uint64(a & (PageSize - 1))
}

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Page is a physical page frame number.
type Page uint64

// PageOf returns the page that contains the given address.
func PageOf(a Addr) Page {
	return Page(a >> PageShift)
}

// Addr returns the physical address of the first byte of the page.
func (p Page) Addr() Addr {
	return Addr(p) << PageShift
}

func (p Page) String() string {
	return "page " + p.Addr().String()
}
