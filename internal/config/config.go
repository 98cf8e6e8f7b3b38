// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config provides the hypervisor's settings, their defaults and
// loading them from TOML files.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
	"github.com/aibor/eptvmm/internal/vmdisk"
)

const (
	DefaultKernel         = "/vmm/kernel"
	DefaultBoot           = "/vmm/boot"
	DefaultEntry          = 0x7000
	DefaultBootSectorSize = 512

	MemoryMin     = 1
	MemoryMax     = 4096
	MemoryDefault = 16

	HostPagesMin     = 16
	HostPagesMax     = 1 << 20
	HostPagesDefault = 8192
)

// Disk configures disk image provisioning.
type Disk struct {
	// Disabled skips provisioning, as done for nested guests.
	Disabled    bool   `toml:"disabled"`
	Template    string `toml:"template"`
	Pattern     string `toml:"pattern"`
	CounterFile string `toml:"counter_file"`
}

// Config is the complete hypervisor configuration.
type Config struct {
	Kernel         string `toml:"kernel"`
	Boot           string `toml:"boot"`
	Entry          uint64 `toml:"entry"`
	BootSectorSize uint64 `toml:"boot_sector_size"`

	// Memory is the guest memory size in MiB.
	Memory uint64 `toml:"memory"`

	// HostPages is the number of host pages backing guest memory and
	// translation tables.
	HostPages uint64          `toml:"host_pages"`
	Backing   physmem.Backing `toml:"backing"`

	// StaticAlloc backs the whole guest memory before loading the kernel.
	StaticAlloc bool `toml:"static_alloc"`

	// Dump is the path a memory snapshot is written to before the guest
	// runs. Empty disables the snapshot.
	Dump string `toml:"dump"`

	Disk Disk `toml:"disk"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Kernel:         DefaultKernel,
		Boot:           DefaultBoot,
		Entry:          DefaultEntry,
		BootSectorSize: DefaultBootSectorSize,
		Memory:         MemoryDefault,
		HostPages:      HostPagesDefault,
		Backing:        physmem.BackingMmap,
		Disk: Disk{
			Template: vmdisk.DefaultTemplate,
			Pattern:  vmdisk.DefaultPattern,
		},
	}
}

// Load reads the TOML file at path on top of the [Default] configuration.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s",
			sys.ErrInvalidArgument, path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate %s: %w", path, err)
	}

	return cfg, nil
}

// MemorySize returns the guest memory size in bytes.
func (c *Config) MemorySize() physmem.Addr {
	return physmem.Addr(c.Memory) << 20
}

// Validate checks value ranges and dependencies between values.
func (c *Config) Validate() error {
	switch {
	case c.Kernel == "":
		return fmt.Errorf("%w: no kernel", sys.ErrInvalidArgument)
	case c.Boot == "":
		return fmt.Errorf("%w: no boot sector", sys.ErrInvalidArgument)
	case c.Memory < MemoryMin || c.Memory > MemoryMax:
		return fmt.Errorf("%w: memory %d MiB not in [%d, %d]",
			sys.ErrInvalidArgument, c.Memory, MemoryMin, MemoryMax)
	case c.HostPages < HostPagesMin || c.HostPages > HostPagesMax:
		return fmt.Errorf("%w: host pages %d not in [%d, %d]",
			sys.ErrInvalidArgument, c.HostPages, HostPagesMin, HostPagesMax)
	case c.BootSectorSize == 0 || c.BootSectorSize > physmem.PageSize:
		return fmt.Errorf("%w: boot sector size %d", sys.ErrInvalidArgument, c.BootSectorSize)
	case physmem.Addr(c.Entry)+physmem.Addr(c.BootSectorSize) > c.MemorySize():
		return fmt.Errorf("%w: boot sector at %#x outside guest memory",
			sys.ErrInvalidArgument, c.Entry)
	case !c.Disk.Disabled && (c.Disk.Template == "" || c.Disk.Pattern == ""):
		return fmt.Errorf("%w: disk template and pattern required", sys.ErrInvalidArgument)
	}

	return nil
}
