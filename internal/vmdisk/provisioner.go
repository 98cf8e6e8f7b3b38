// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package vmdisk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aibor/eptvmm/internal/sys"
	"github.com/gofrs/flock"
)

const (
	// DefaultTemplate is the clean image new disks are copied from.
	DefaultTemplate = "/vmm/clean-fs.img"

	// DefaultPattern is the format of new disk paths. The verb is replaced
	// with the disk number.
	DefaultPattern = "/vmm/fs%d.img"

	counterFileName = ".vmdisk-number"
	lockSuffix      = ".lock"
)

// Provisioner creates numbered disk images from a template.
type Provisioner struct {
	// Template is the path of the image that is copied.
	Template string

	// Pattern is the format string of new image paths. It must have
	// exactly one integer verb.
	Pattern string

	// CounterFile persists the last used disk number. If empty, a file in
	// the directory of Pattern is used.
	CounterFile string
}

// Provision creates a new disk image with the next disk number and returns
// its path.
func (p *Provisioner) Provision() (string, error) {
	if strings.Count(p.Pattern, "%") != 1 || !strings.Contains(p.Pattern, "%d") {
		return "", fmt.Errorf("%w: disk pattern %q", sys.ErrInvalidArgument, p.Pattern)
	}

	number, err := p.Next()
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf(p.Pattern, number)

	if err := copyFile(p.Template, path); err != nil {
		return "", fmt.Errorf("create disk %s: %w", path, err)
	}

	slog.Debug("Disk image provisioned",
		slog.String("template", p.Template),
		slog.String("path", path),
		slog.Int("number", number))

	return path, nil
}

// Next increments the persistent disk counter and returns the new value.
// The first number handed out is 1.
func (p *Provisioner) Next() (int, error) {
	counterFile := p.counterFile()

	unlock, err := lock(counterFile + lockSuffix)
	if err != nil {
		return 0, err
	}

	defer func() { _ = unlock() }()

	number, err := readCounter(counterFile)
	if err != nil {
		return 0, err
	}

	number++

	err = os.WriteFile(counterFile, []byte(strconv.Itoa(number)+"\n"), 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: write disk counter: %w", sys.ErrIO, err)
	}

	return number, nil
}

func (p *Provisioner) counterFile() string {
	if p.CounterFile != "" {
		return p.CounterFile
	}

	return filepath.Join(filepath.Dir(p.Pattern), counterFileName)
}

// lock takes an exclusive file lock and returns the function releasing it.
func lock(path string) (func() error, error) {
	l := flock.New(path)
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", sys.ErrIO, path, err)
	}

	return l.Unlock, nil
}

func readCounter(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("%w: read disk counter: %w", sys.ErrIO, err)
	}

	number, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || number < 0 {
		return 0, fmt.Errorf("%w: disk counter %q", sys.ErrInvalidArgument, data)
	}

	return number, nil
}

func copyFile(source, target string) (err error) {
	src, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: open template: %w", sys.ErrIO, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", sys.ErrIO, err)
	}

	defer func() {
		err = errors.Join(err, dst.Close())
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: copy template: %w", sys.ErrIO, err)
	}

	return nil
}
