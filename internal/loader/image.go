// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"debug/elf"
	"fmt"
	"log/slog"
	"os"

	"github.com/aibor/eptvmm/internal/guest"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
)

// LoadKernelImage loads all loadable segments of the ELF executable at
// filename into the guest at their physical addresses. It returns the
// image's entry point.
//
// If the file is not an ELF executable for a supported machine, it fails
// with [sys.ErrNotExecutable] before the guest is modified.
func (l *Loader) LoadKernelImage(g *guest.Guest, filename string) (physmem.Addr, error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("%w: open kernel image: %w", sys.ErrIO, err)
	}
	defer file.Close()

	if err := sys.CheckELFMagic(file); err != nil {
		return 0, fmt.Errorf("kernel image %s: %w", filename, err)
	}

	elfFile, err := elf.NewFile(file)
	if err != nil {
		return 0, fmt.Errorf("%w: kernel image %s: %w", sys.ErrNotExecutable, filename, err)
	}

	if err := sys.ValidateELF(elfFile.FileHeader); err != nil {
		return 0, fmt.Errorf("kernel image %s: %w", filename, err)
	}

	for idx, prog := range elfFile.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		slog.Debug("Load kernel segment",
			slog.Int("guest", g.ID()),
			slog.Int("index", idx),
			slog.String("paddr", physmem.Addr(prog.Paddr).String()),
			slog.Uint64("filesz", prog.Filesz),
			slog.Uint64("memsz", prog.Memsz),
			slog.Uint64("offset", prog.Off))

		err := l.MapInGuest(g, physmem.Addr(prog.Paddr), prog.Memsz, file, prog.Filesz, int64(prog.Off))
		if err != nil {
			return 0, fmt.Errorf("load segment %d: %w", idx, err)
		}
	}

	return physmem.Addr(elfFile.Entry), nil
}
