// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aibor/eptvmm/internal/config"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAbs(t *testing.T, path string) string {
	t.Helper()

	abs, err := AbsoluteFilePath(path)
	require.NoError(t, err)

	return abs
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		modify      func(cfg *config.Config)
		debug       bool
		expectedErr error
	}{
		{
			name:   "defaults",
			modify: func(*config.Config) {},
		},
		{
			name:        "help",
			args:        []string{"-help"},
			expectedErr: ErrHelp,
		},
		{
			name:        "version",
			args:        []string{"-version"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "positional argument",
			args:        []string{"kernel"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "memory out of range",
			args:        []string{"-memory=0"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "empty kernel",
			args:        []string{"-kernel="},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "unknown backing",
			args:        []string{"-backing=hugetlb"},
			expectedErr: &ParseArgsError{},
		},
		{
			name:        "boot sector outside memory",
			args:        []string{"-memory=1", "-entry=0xfffff"},
			expectedErr: &ParseArgsError{},
		},
		{
			name: "all flags",
			args: []string{
				"-kernel=guest/kernel",
				"-boot", "/srv/boot",
				"-entry=0x8000",
				"-memory", "64",
				"-hostPages=32768",
				"-backing=heap",
				"-prealloc",
				"-dump=/tmp/guest.cpio",
				"-noDisk",
				"-diskTemplate=/srv/clean.img",
				"-diskPattern=/srv/disk%d.img",
				"-debug",
			},
			modify: func(cfg *config.Config) {
				cfg.Kernel = mustAbs(t, "guest/kernel")
				cfg.Boot = "/srv/boot"
				cfg.Entry = 0x8000
				cfg.Memory = 64
				cfg.HostPages = 32768
				cfg.Backing = physmem.BackingHeap
				cfg.StaticAlloc = true
				cfg.Dump = "/tmp/guest.cpio"
				cfg.Disk.Disabled = true
				cfg.Disk.Template = "/srv/clean.img"
				cfg.Disk.Pattern = "/srv/disk%d.img"
			},
			debug: true,
		},
		{
			name: "decimal entry",
			args: []string{"-entry=4096"},
			modify: func(cfg *config.Config) {
				cfg.Entry = 0x1000
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, err := parseArgs(tt.args, io.Discard)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.expectedErr != nil {
				return
			}

			expected := config.Default()
			tt.modify(&expected)

			assert.Equal(t, expected, flags.cfg)
			assert.Equal(t, tt.debug, flags.debug)
		})
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eptvmm.toml")
	content := "kernel = \"/srv/kernel\"\nmemory = 32\n\n[disk]\ndisabled = true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Run("file values", func(t *testing.T) {
		flags, err := parseArgs([]string{"-config", path}, io.Discard)
		require.NoError(t, err)

		assert.Equal(t, "/srv/kernel", flags.cfg.Kernel)
		assert.Equal(t, uint64(32), flags.cfg.Memory)
		assert.True(t, flags.cfg.Disk.Disabled)
		assert.Equal(t, path, flags.configFile)
	})

	t.Run("flags take precedence", func(t *testing.T) {
		args := []string{"-memory=8", "-config", path, "-noDisk=false"}

		flags, err := parseArgs(args, io.Discard)
		require.NoError(t, err)

		assert.Equal(t, "/srv/kernel", flags.cfg.Kernel)
		assert.Equal(t, uint64(8), flags.cfg.Memory)
		assert.False(t, flags.cfg.Disk.Disabled)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := parseArgs([]string{"-config", path + ".missing"}, io.Discard)
		require.ErrorIs(t, err, &ParseArgsError{})
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
