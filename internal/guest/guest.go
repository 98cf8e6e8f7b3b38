// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// Boundaries of the legacy hole between conventional and extended memory.
const (
	LowMemoryEnd    physmem.Addr = 0xA0000
	HighMemoryStart physmem.Addr = 0x100000
)

// Guest is a virtual machine's memory and lifecycle state.
type Guest struct {
	id      int
	memSize physmem.Addr
	entry   physmem.Addr
	alloc   ept.Allocator
	tree    *ept.Tree

	mu       sync.Mutex
	status   Status
	exitCode int
	err      error
	done     chan struct{}
}

// ID returns the guest's identifier.
func (g *Guest) ID() int {
	return g.id
}

// MemSize returns the size of the guest physical address space.
func (g *Guest) MemSize() physmem.Addr {
	return g.memSize
}

// Entry returns the guest physical address execution starts at.
func (g *Guest) Entry() physmem.Addr {
	return g.entry
}

// SetEntry overrides the entry point. It is only allowed before the guest is
// runnable.
func (g *Guest) SetEntry(entry physmem.Addr) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusCreated {
		return fmt.Errorf("%w: set entry while %s", ErrInvalidState, g.status)
	}

	if entry >= g.memSize {
		return fmt.Errorf("%w: entry %s outside guest memory", sys.ErrInvalidArgument, entry)
	}

	g.entry = entry

	return nil
}

// Tree returns the guest's extended page table tree.
func (g *Guest) Tree() *ept.Tree {
	return g.tree
}

// Status returns the guest's current lifecycle state.
func (g *Guest) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.status
}

// MapHostPage maps the host page backing hva into the guest at gpa. gpa must
// be page aligned and inside the guest's memory.
func (g *Guest) MapHostPage(
	space ept.HostSpace,
	hva physmem.Addr,
	gpa physmem.Addr,
	perm ept.Entry,
	overwrite bool,
) error {
	if g.Status() == StatusDestroyed {
		return fmt.Errorf("%w: map into %s guest", ErrInvalidState, StatusDestroyed)
	}

	if gpa >= g.memSize {
		return fmt.Errorf("%w: gpa %s outside guest memory of size %s",
			sys.ErrInvalidArgument, gpa, g.memSize)
	}

	return g.tree.MapHostToGuest(space, hva, gpa, perm, overwrite)
}

// AllocStatic backs the conventional memory below [LowMemoryEnd] and the
// extended memory from [HighMemoryStart] up to the guest's memory size with
// zeroed pages. Pages that are mapped already are left alone.
func (g *Guest) AllocStatic() error {
	ranges := []struct{ start, end physmem.Addr }{
		{0, min(LowMemoryEnd, g.memSize)},
		{HighMemoryStart, g.memSize},
	}

	var mapped int

	for _, r := range ranges {
		for gpa := r.start; gpa < r.end; gpa += physmem.PageSize {
			ok, err := g.allocStaticPage(gpa)
			if err != nil {
				return fmt.Errorf("static page at %s: %w", gpa, err)
			}

			if ok {
				mapped++
			}
		}
	}

	slog.Debug("Static guest memory allocated",
		slog.Int("guest", g.id),
		slog.Int("pages", mapped))

	return nil
}

func (g *Guest) allocStaticPage(gpa physmem.Addr) (bool, error) {
	entry, err := g.tree.Lookup(gpa, false)
	if err == nil && entry.Present() {
		return false, nil
	}

	page, err := g.alloc.Alloc(true)
	if err != nil {
		return false, err
	}

	// Hold a reference while inserting, so the page is reclaimed if the
	// insert fails.
	g.alloc.IncRef(page)
	defer g.alloc.DecRef(page)

	if err := g.tree.Insert(page, gpa, ept.Full|ept.LeafFlags); err != nil {
		return false, err
	}

	return true, nil
}

var _ io.ReaderAt = (*Guest)(nil)

// ReadAt reads guest physical memory. Reads beyond the guest's memory size
// are cut short with [io.EOF].
func (g *Guest) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset", sys.ErrInvalidArgument)
	}

	if uint64(off) >= uint64(g.memSize) {
		return 0, io.EOF
	}

	limit := uint64(g.memSize) - uint64(off)
	if uint64(len(p)) <= limit {
		return g.tree.ReadAt(p, off)
	}

	n, err := g.tree.ReadAt(p[:limit], off)
	if err == nil {
		err = io.EOF
	}

	return n, err
}

func (g *Guest) finish(exitCode int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.status = StatusExited
	g.exitCode = exitCode
	g.err = err

	close(g.done)
}
