// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dump

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aibor/eptvmm/internal/ept"
	"github.com/aibor/eptvmm/internal/physmem"
	"github.com/cavaliergopher/cpio"
)

const (
	// MemoryDir is the archive directory page files are written to.
	MemoryDir = "memory"

	// LayoutFile is the archive path of the mapping list.
	LayoutFile = "layout"
)

// PageName returns the archive path of the page mapped at gpa.
func PageName(gpa physmem.Addr) string {
	return path.Join(MemoryDir, fmt.Sprintf("%016x", uint64(gpa)))
}

// Memory writes all pages mapped in tree into the archive.
func Memory(w *Writer, tree *ept.Tree) error {
	if err := w.WriteDirectory(MemoryDir); err != nil {
		return err
	}

	var layout bytes.Buffer

	err := tree.Walk(func(gpa physmem.Addr, entry ept.Entry) error {
		data, err := tree.HostBytes(gpa)
		if err != nil {
			return fmt.Errorf("read page %s: %w", gpa, err)
		}

		if err := w.WriteRegular(PageName(gpa), data, fileMode(entry)); err != nil {
			return err
		}

		fmt.Fprintf(&layout, "%016x %s\n", uint64(gpa), entry)

		return nil
	})
	if err != nil {
		return err
	}

	return w.WriteRegular(LayoutFile, layout.Bytes(), 0o444)
}

// ToFile writes a snapshot of the pages mapped in tree into a new archive
// file at filePath.
func ToFile(filePath string, tree *ept.Tree) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	w := NewWriter(file)

	if err := Memory(w, tree); err != nil {
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}

	slog.Debug("Guest memory dumped",
		slog.String("path", filePath),
		slog.Int("pages", tree.Leaves()))

	return nil
}

func fileMode(entry ept.Entry) cpio.FileMode {
	var mode cpio.FileMode

	if entry&ept.Read != 0 {
		mode |= 0o444
	}

	if entry&ept.Write != 0 {
		mode |= 0o222
	}

	if entry&ept.Exec != 0 {
		mode |= 0o111
	}

	return mode
}
