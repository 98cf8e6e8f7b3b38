// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aibor/eptvmm/internal/config"
	"github.com/aibor/eptvmm/internal/dump"
	"github.com/aibor/eptvmm/internal/guest"
	"github.com/aibor/eptvmm/internal/loader"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
	"github.com/aibor/eptvmm/internal/vmdisk"
)

// Run boots a single guest as configured and waits for it to exit. The
// guest is executed by runner.
func Run(ctx context.Context, cfg config.Config, runner guest.Runner) (err error) {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	mem, err := physmem.New(int(cfg.HostPages), physmem.WithBacking(cfg.Backing))
	if err != nil {
		return fmt.Errorf("physical memory: %w", err)
	}

	defer func() {
		err = errors.Join(err, mem.Close())
	}()

	l, err := loader.New(mem)
	if err != nil {
		return fmt.Errorf("loader: %w", err)
	}

	manager := guest.NewManager(mem, runner)

	defer func() {
		if err := manager.Shutdown(); err != nil {
			slog.Debug("Guest manager shutdown", slog.Any("error", err))
		}
	}()

	return Guest(ctx, cfg, manager, l)
}

// Guest runs the boot sequence for a single guest with the given manager
// and loader.
func Guest(
	ctx context.Context,
	cfg config.Config,
	manager *guest.Manager,
	l *loader.Loader,
) error {
	g, err := manager.Create(cfg.MemorySize(), physmem.Addr(cfg.Entry))
	if err != nil {
		return fmt.Errorf("create guest: %w", err)
	}

	if cfg.StaticAlloc {
		if err := g.AllocStatic(); err != nil {
			return fmt.Errorf("allocate guest memory: %w", err)
		}
	}

	kernelEntry, err := l.LoadKernelImage(g, cfg.Kernel)
	if err != nil {
		return fmt.Errorf("load kernel: %w", err)
	}

	slog.Debug("Kernel loaded",
		slog.String("path", cfg.Kernel),
		slog.String("kernel_entry", kernelEntry.String()))

	if err := loadBootSector(l, g, cfg.Boot, cfg.BootSectorSize); err != nil {
		return fmt.Errorf("load boot sector: %w", err)
	}

	if cfg.Dump != "" {
		if err := dump.ToFile(cfg.Dump, g.Tree()); err != nil {
			return fmt.Errorf("dump guest memory: %w", err)
		}
	}

	if !cfg.Disk.Disabled {
		disks := vmdisk.Provisioner{
			Template:    cfg.Disk.Template,
			Pattern:     cfg.Disk.Pattern,
			CounterFile: cfg.Disk.CounterFile,
		}

		path, err := disks.Provision()
		if err != nil {
			return fmt.Errorf("provision disk: %w", err)
		}

		slog.Info("Created virtual disk", slog.String("path", path))
	}

	if err := manager.SetRunnable(ctx, g); err != nil {
		return fmt.Errorf("set runnable: %w", err)
	}

	if err := manager.Wait(ctx, g); err != nil {
		return err
	}

	if err := manager.Destroy(g); err != nil {
		return fmt.Errorf("destroy guest: %w", err)
	}

	return nil
}

// loadBootSector maps the boot sector at the guest's entry point. Files
// shorter than size are mapped as far as they go.
func loadBootSector(l *loader.Loader, g *guest.Guest, path string, size uint64) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", sys.ErrIO, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", sys.ErrIO, err)
	}

	fileSize := min(uint64(info.Size()), size)

	return l.MapInGuest(g, g.Entry(), size, file, fileSize, 0)
}
