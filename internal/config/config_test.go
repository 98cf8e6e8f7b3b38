// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/eptvmm/internal/config"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/aibor/eptvmm/internal/sys"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eptvmm.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/vmm/kernel", cfg.Kernel)
	assert.Equal(t, "/vmm/boot", cfg.Boot)
	assert.Equal(t, uint64(0x7000), cfg.Entry)
	assert.Equal(t, uint64(512), cfg.BootSectorSize)
	assert.Equal(t, physmem.Addr(16<<20), cfg.MemorySize())
	assert.Equal(t, "/vmm/clean-fs.img", cfg.Disk.Template)
	assert.Equal(t, "/vmm/fs%d.img", cfg.Disk.Pattern)
	assert.False(t, cfg.Disk.Disabled)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
kernel = "/srv/kernel"
entry = 0x8000
memory = 32
backing = "heap"
static_alloc = true
dump = "/tmp/guest.cpio"

[disk]
disabled = true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	expected := config.Default()
	expected.Kernel = "/srv/kernel"
	expected.Entry = 0x8000
	expected.Memory = 32
	expected.Backing = physmem.BackingHeap
	expected.StaticAlloc = true
	expected.Dump = "/tmp/guest.cpio"
	expected.Disk.Disabled = true

	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectedErr error
	}{
		{
			name:        "unknown key",
			content:     "kernel = \"/k\"\ncpus = 4\n",
			expectedErr: sys.ErrInvalidArgument,
		},
		{
			name:        "memory too large",
			content:     "memory = 8192\n",
			expectedErr: sys.ErrInvalidArgument,
		},
		{
			name:        "boot sector outside memory",
			content:     "memory = 1\nentry = 0xfff00\n",
			expectedErr: sys.ErrInvalidArgument,
		},
		{
			name:        "disk without template",
			content:     "[disk]\ntemplate = \"\"\n",
			expectedErr: sys.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}

	t.Run("unknown backing", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "backing = \"hugetlb\"\n"))
		require.ErrorContains(t, err, "hugetlb")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "kernel = \n"))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
		valid  bool
	}{
		{
			name:   "default",
			modify: func(*config.Config) {},
			valid:  true,
		},
		{
			name:   "no kernel",
			modify: func(cfg *config.Config) { cfg.Kernel = "" },
		},
		{
			name:   "no boot",
			modify: func(cfg *config.Config) { cfg.Boot = "" },
		},
		{
			name:   "too few host pages",
			modify: func(cfg *config.Config) { cfg.HostPages = 1 },
		},
		{
			name:   "boot sector larger than page",
			modify: func(cfg *config.Config) { cfg.BootSectorSize = 8192 },
		},
		{
			name: "disk disabled without template",
			modify: func(cfg *config.Config) {
				cfg.Disk = config.Disk{Disabled: true}
			},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, sys.ErrInvalidArgument)
			}
		})
	}
}
