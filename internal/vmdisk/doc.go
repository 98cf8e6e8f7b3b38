// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package vmdisk provisions guest disk images. Each guest gets its own copy
// of a clean template image at a path derived from a persistent counter.
package vmdisk
