// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmdisk_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/aibor/eptvmm/internal/sys"
	"github.com/aibor/eptvmm/internal/vmdisk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newProvisioner(t *testing.T) *vmdisk.Provisioner {
	t.Helper()

	dir := t.TempDir()
	template := filepath.Join(dir, "clean-fs.img")
	require.NoError(t, os.WriteFile(template, []byte("clean file system"), 0o600))

	return &vmdisk.Provisioner{
		Template: template,
		Pattern:  filepath.Join(dir, "fs%d.img"),
	}
}

func TestProvisioner_Provision(t *testing.T) {
	p := newProvisioner(t)
	dir := filepath.Dir(p.Template)

	for _, expected := range []string{"fs1.img", "fs2.img"} {
		path, err := p.Provision()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, expected), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "clean file system", string(data))
	}

	counter, err := os.ReadFile(filepath.Join(dir, ".vmdisk-number"))
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(counter))
}

func TestProvisioner_Provision_Errors(t *testing.T) {
	tests := []struct {
		name        string
		prepare     func(t *testing.T, p *vmdisk.Provisioner)
		expectedErr []error
	}{
		{
			name: "missing template",
			prepare: func(t *testing.T, p *vmdisk.Provisioner) {
				require.NoError(t, os.Remove(p.Template))
			},
			expectedErr: []error{sys.ErrIO, os.ErrNotExist},
		},
		{
			name: "target exists",
			prepare: func(t *testing.T, p *vmdisk.Provisioner) {
				target := filepath.Join(filepath.Dir(p.Template), "fs1.img")
				require.NoError(t, os.WriteFile(target, []byte("in use"), 0o600))
			},
			expectedErr: []error{sys.ErrIO, os.ErrExist},
		},
		{
			name: "pattern without verb",
			prepare: func(_ *testing.T, p *vmdisk.Provisioner) {
				p.Pattern = filepath.Join(filepath.Dir(p.Template), "fs.img")
			},
			expectedErr: []error{sys.ErrInvalidArgument},
		},
		{
			name: "pattern with extra verb",
			prepare: func(_ *testing.T, p *vmdisk.Provisioner) {
				p.Pattern = filepath.Join(filepath.Dir(p.Template), "fs%d-%s.img")
			},
			expectedErr: []error{sys.ErrInvalidArgument},
		},
		{
			name: "corrupt counter",
			prepare: func(t *testing.T, p *vmdisk.Provisioner) {
				counter := filepath.Join(filepath.Dir(p.Template), ".vmdisk-number")
				require.NoError(t, os.WriteFile(counter, []byte("many"), 0o600))
			},
			expectedErr: []error{sys.ErrInvalidArgument},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvisioner(t)
			tt.prepare(t, p)

			_, err := p.Provision()
			for _, expected := range tt.expectedErr {
				require.ErrorIs(t, err, expected)
			}
		})
	}
}

func TestProvisioner_Next_Concurrent(t *testing.T) {
	const workers = 8

	p := newProvisioner(t)
	p.CounterFile = filepath.Join(t.TempDir(), "counter")

	var (
		mu      sync.Mutex
		numbers []int
		eg      errgroup.Group
	)

	for range workers {
		eg.Go(func() error {
			number, err := p.Next()
			if err != nil {
				return err
			}

			mu.Lock()
			numbers = append(numbers, number)
			mu.Unlock()

			return nil
		})
	}

	require.NoError(t, eg.Wait())

	slices.Sort(numbers)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, numbers)
}
