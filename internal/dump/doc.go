// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dump writes snapshots of guest physical memory as cpio archives.
//
// Every mapped guest page becomes a regular file below [MemoryDir] named by
// its guest physical address. The file mode reflects the page's extended
// page table permissions. A [LayoutFile] lists all mappings in text form.
package dump
