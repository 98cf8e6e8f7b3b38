// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package physmem provides the host physical page allocator guest memory is
// built from.
//
// Host physical memory is modelled as an arena of fixed size pages. Each page
// carries a reference count. Every holder of a page, like an extended page
// table slot or a host virtual mapping, owns exactly one reference. A page is
// returned to the free list once its last reference is dropped.
//
// The arena is directly mapped: [Memory.Bytes] returns the host memory
// backing a page, so page tables and guest data can be read and written by
// physical address.
package physmem
