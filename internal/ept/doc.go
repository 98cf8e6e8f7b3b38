// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ept implements extended page tables: the second level translation
// from guest physical addresses to host physical pages.
//
// A [Tree] is a 4 level radix tree. Every table is one host physical page
// holding 512 [Entry] values and is addressed by its physical address. The
// index into the table of each level is a 9 bit window of the guest physical
// address, see [IndexAt]. Intermediate tables are allocated on demand and
// always carry full permissions, since the hardware ANDs the permissions of
// all levels. Restrictions are expressed at the leaf level only.
//
// Every present entry holds exactly one reference on the page it points to,
// be it an intermediate table or a guest data page. [Tree.Insert],
// [Tree.Remove], [Tree.MapHostToGuest] and [Tree.FreeAll] are the only
// operations that change entries, so the accounting cannot be bypassed.
//
// A Tree is owned by a single guest and is not safe for concurrent use.
package ept
