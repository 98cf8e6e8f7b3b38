// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ept

import "github.com/aibor/eptvmm/internal/physmem"

// FreeAll drops every intermediate table and every mapped guest page and
// flushes cached translations. The root table stays allocated, so the tree
// can be used again.
func (t *Tree) FreeAll() {
	if !t.valid {
		return
	}

	t.freeLevel(t.table(t.root), Levels-1)
	t.tlb.flush()
}

func (t *Tree) freeLevel(table *Table, level int) {
	for idx, entry := range table {
		if !entry.Present() {
			continue
		}

		page := physmem.PageOf(entry.Address())

		// Leaves are guest data pages and must not be walked.
		if level > 0 {
			t.freeLevel(t.table(page), level-1)
			t.tables--
		}

		table[idx] = 0
		t.alloc.DecRef(page)
	}
}
