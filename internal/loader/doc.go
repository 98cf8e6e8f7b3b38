// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package loader copies guest images from host files into guest physical
// memory.
//
// Content is moved one page at a time through a bounce buffer: a fresh host
// page mapped at the loader's scratch address, filled from the file and
// then handed to the guest's extended page table. Once the guest holds its
// reference, the scratch mapping is dropped and the page belongs to the
// guest alone.
package loader
