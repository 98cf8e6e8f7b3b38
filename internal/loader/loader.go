// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"fmt"
	"io"

	"github.com/aibor/eptvmm/internal/addrspace"
	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/guest"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// DefaultScratchAddr is the host virtual address bounce buffers are mapped
// at by default.
const DefaultScratchAddr physmem.Addr = 0x00400000

// Option configures a [Loader] on creation.
type Option func(*Loader)

// WithScratchAddr sets the host virtual address bounce buffers are mapped
// at.
func WithScratchAddr(addr physmem.Addr) Option {
	return func(l *Loader) {
		l.scratch = addr
	}
}

// Loader copies file content into guest physical memory.
//
// A Loader uses a single scratch address and must not be used concurrently.
type Loader struct {
	mem     *physmem.Memory
	space   *addrspace.Space
	scratch physmem.Addr
}

// New creates a [Loader] that takes bounce buffer pages from mem.
func New(mem *physmem.Memory, opts ...Option) (*Loader, error) {
	loader := &Loader{
		mem:     mem,
		space:   addrspace.New(mem),
		scratch: DefaultScratchAddr,
	}

	for _, opt := range opts {
		opt(loader)
	}

	if !loader.scratch.PageAligned() {
		return nil, fmt.Errorf("%w: scratch address %s not page aligned",
			sys.ErrInvalidArgument, loader.scratch)
	}

	return loader, nil
}

// MapInGuest maps the guest physical range [gpa, gpa+memSize) into the
// guest. The first fileSize bytes are read from file starting at
// fileOffset, the rest is zero filled.
//
// Every page the range touches gets a new host page with full permissions.
// If a page is only partially covered and already mapped in the guest, its
// current content outside of the range is preserved.
//
// The first error aborts the operation. Pages mapped before stay mapped.
func (l *Loader) MapInGuest(
	g *guest.Guest,
	gpa physmem.Addr,
	memSize uint64,
	file io.ReadSeeker,
	fileSize uint64,
	fileOffset int64,
) error {
	if fileSize > memSize {
		return fmt.Errorf("%w: file size %d exceeds memory size %d",
			sys.ErrInvalidArgument, fileSize, memSize)
	}

	if memSize == 0 {
		return nil
	}

	seg := segment{
		start:    gpa,
		end:      gpa + physmem.Addr(memSize),
		fileEnd:  gpa + physmem.Addr(fileSize),
		fileBase: fileOffset,
	}

	if seg.end < seg.start {
		return fmt.Errorf("%w: range at %s with size %d overflows",
			sys.ErrInvalidArgument, gpa, memSize)
	}

	for page := seg.start.PageDown(); page < seg.end; page += physmem.PageSize {
		if err := l.mapPage(g, page, seg, file); err != nil {
			return fmt.Errorf("map guest page %s: %w", page, err)
		}
	}

	return nil
}

type segment struct {
	start    physmem.Addr
	end      physmem.Addr
	fileEnd  physmem.Addr
	fileBase int64
}

func (l *Loader) mapPage(g *guest.Guest, page physmem.Addr, seg segment, file io.ReadSeeker) error {
	buf, err := l.acquireBounce()
	if err != nil {
		return err
	}
	defer l.releaseBounce()

	start := max(page, seg.start)
	end := min(page+physmem.PageSize, seg.end)

	if start != page || end != page+physmem.PageSize {
		if current, err := g.Tree().HostBytes(page); err == nil {
			copy(buf, current)
		}
	}

	if fileEnd := min(end, seg.fileEnd); start < fileEnd {
		offset := seg.fileBase + int64(start-seg.start)

		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("%w: seek to %d: %w", sys.ErrIO, offset, err)
		}

		if _, err := io.ReadFull(file, buf[start-page:fileEnd-page]); err != nil {
			return fmt.Errorf("%w: read at %d: %w", sys.ErrIO, offset, err)
		}
	}

	if zeroStart := max(start, seg.fileEnd); zeroStart < end {
		clear(buf[zeroStart-page : end-page])
	}

	return g.MapHostPage(l.space, l.scratch, page, ept.Full, true)
}
