// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package physmem

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aibor/eptvmm/internal/sys"
)

// DefaultBase is the physical address of the first arena page. It keeps the
// zero page out of the arena, so the zero address never names a valid page.
const DefaultBase Addr = 0x100000

// Backing defines what host memory the arena is built on.
type Backing int

const (
	// BackingMmap uses an anonymous private memory mapping.
	BackingMmap Backing = iota
	// BackingHeap uses a Go heap allocated byte slice.
	BackingHeap
)

func (b Backing) String() string {
	switch b {
	case BackingMmap:
		return "mmap"
	case BackingHeap:
		return "heap"
	default:
		return fmt.Sprintf("backing(%d)", int(b))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (b Backing) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (b *Backing) UnmarshalText(text []byte) error {
	switch string(text) {
	case "mmap":
		*b = BackingMmap
	case "heap":
		*b = BackingHeap
	default:
		return fmt.Errorf("%w: backing %q", sys.ErrNotSupported, text)
	}

	return nil
}

// Option configures a [Memory] on creation.
type Option func(*Memory)

// WithBase sets the physical address of the first arena page. It is rounded
// down to a page boundary.
func WithBase(base Addr) Option {
	return func(m *Memory) {
		m.first = PageOf(base)
	}
}

// WithBacking sets the arena backing.
func WithBacking(backing Backing) Option {
	return func(m *Memory) {
		m.backing = backing
	}
}

// Memory is a reference counting physical page allocator.
//
// Reference counts are modified atomically. The free list is guarded by a
// mutex. A freshly allocated page has a reference count of zero; the first
// holder takes the first reference.
type Memory struct {
	first   Page
	backing Backing
	arena   []byte
	release func() error

	refs []atomic.Int32

	mu        sync.Mutex
	allocated []bool
	free      []Page
}

// New creates a new [Memory] with the given number of pages.
func New(numPages int, opts ...Option) (*Memory, error) {
	if numPages <= 0 {
		return nil, fmt.Errorf("%w: page count %d", sys.ErrInvalidArgument, numPages)
	}

	mem := &Memory{
		first:   PageOf(DefaultBase),
		backing: BackingMmap,
	}

	for _, opt := range opts {
		opt(mem)
	}

	size := numPages * PageSize

	switch mem.backing {
	case BackingMmap:
		arena, release, err := mmapArena(size)
		if err != nil {
			return nil, fmt.Errorf("mmap arena: %w", err)
		}

		mem.arena = arena
		mem.release = release
	case BackingHeap:
		mem.arena = make([]byte, size)
		mem.release = func() error { return nil }
	default:
		return nil, fmt.Errorf("%w: %s", sys.ErrNotSupported, mem.backing)
	}

	mem.refs = make([]atomic.Int32, numPages)
	mem.allocated = make([]bool, numPages)
	mem.free = make([]Page, 0, numPages)

	// Fill in reverse so the lowest page is handed out first.
	for idx := numPages - 1; idx >= 0; idx-- {
		mem.free = append(mem.free, mem.first+Page(idx))
	}

	slog.Debug("Physical memory initialized",
		slog.String("base", mem.first.Addr().String()),
		slog.Int("pages", numPages),
		slog.String("backing", mem.backing.String()))

	return mem, nil
}

// Close releases the arena. The [Memory] must not be used afterwards.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.arena == nil {
		return nil
	}

	m.arena = nil
	m.free = nil

	return m.release()
}

// NumPages returns the total number of pages of the arena.
func (m *Memory) NumPages() int {
	return len(m.refs)
}

// FreePages returns the number of pages that are currently not allocated.
func (m *Memory) FreePages() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.free)
}

// Contains returns true if the given address is backed by the arena.
func (m *Memory) Contains(addr Addr) bool {
	_, ok := m.index(PageOf(addr))
	return ok
}

// PageAt returns the page for the given page aligned physical address.
func (m *Memory) PageAt(addr Addr) (Page, error) {
	if !addr.PageAligned() {
		return 0, fmt.Errorf("%w: address %s not page aligned", sys.ErrInvalidArgument, addr)
	}

	page := PageOf(addr)
	if _, ok := m.index(page); !ok {
		return 0, fmt.Errorf("%w: address %s not in physical memory", sys.ErrInvalidArgument, addr)
	}

	return page, nil
}

// Alloc allocates a page. If zero is true, the page content is cleared. The
// page's reference count is zero. Use [Memory.IncRef] to take a reference or
// [Memory.Free] to give an unreferenced page back.
func (m *Memory) Alloc(zero bool) (Page, error) {
	m.mu.Lock()

	if len(m.free) == 0 {
		m.mu.Unlock()
		return 0, sys.ErrOutOfMemory
	}

	page := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]

	idx, _ := m.index(page)
	m.allocated[idx] = true

	m.mu.Unlock()

	if zero {
		clear(m.Bytes(page))
	}

	return page, nil
}

// Free gives back a page that was allocated but never referenced.
func (m *Memory) Free(page Page) error {
	idx, ok := m.index(page)
	if !ok {
		return fmt.Errorf("%w: %s not in physical memory", sys.ErrInvalidArgument, page)
	}

	if refs := m.refs[idx].Load(); refs != 0 {
		return fmt.Errorf("%w: %s still has %d references", sys.ErrInvalidArgument, page, refs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allocated[idx] {
		return fmt.Errorf("%w: %s is not allocated", sys.ErrInvalidArgument, page)
	}

	m.allocated[idx] = false
	m.free = append(m.free, page)

	return nil
}

// IncRef takes a reference on the given allocated page.
func (m *Memory) IncRef(page Page) {
	idx := m.mustIndex(page, "incref")

	m.refs[idx].Add(1)
}

// DecRef drops a reference of the given page. The page is reclaimed once the
// count drops to zero.
func (m *Memory) DecRef(page Page) {
	idx := m.mustIndex(page, "decref")

	refs := m.refs[idx].Add(-1)
	if refs < 0 {
		panic(&RefCountError{Page: page, Count: refs, Op: "decref"})
	}

	if refs > 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocated[idx] = false
	m.free = append(m.free, page)
}

// RefCount returns the current reference count of the page.
func (m *Memory) RefCount(page Page) int {
	idx := m.mustIndex(page, "refcount")
	return int(m.refs[idx].Load())
}

// Bytes returns the host memory backing the page.
func (m *Memory) Bytes(page Page) []byte {
	idx := m.mustIndex(page, "bytes")
	off := idx * PageSize

	return m.arena[off : off+PageSize : off+PageSize]
}

func (m *Memory) index(page Page) (int, bool) {
	if page < m.first || page >= m.first+Page(len(m.refs)) {
		return 0, false
	}

	return int(page - m.first), true
}

func (m *Memory) mustIndex(page Page, op string) int {
	idx, ok := m.index(page)
	if !ok {
		panic(fmt.Sprintf("%s: %s not in physical memory", op, page))
	}

	return idx
}
