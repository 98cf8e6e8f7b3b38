// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import "errors"

var (
	// ErrInvalidArgument is returned for a missing tree root, a file region
	// larger than its memory region, misaligned addresses and invalid
	// permissions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingEntry is returned if a translation is looked up without
	// creation and an intermediate table is absent.
	ErrMissingEntry = errors.New("no such entry")

	// ErrOutOfMemory is returned if no host physical page is left.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrAlreadyMapped is returned if a guest physical address is mapped
	// already and overwriting is not requested.
	ErrAlreadyMapped = errors.New("already mapped")

	// ErrNotExecutable is returned if a guest image is not a loadable
	// executable.
	ErrNotExecutable = errors.New("not an executable")

	// ErrIO is returned for failed open, seek and short reads.
	ErrIO = errors.New("i/o error")

	// ErrNotSupported is returned if an operation is not available in the
	// current build.
	ErrNotSupported = errors.New("not supported")

	// ErrOSABINotSupported is returned if the OS ABI of an ELF file is not
	// supported.
	ErrOSABINotSupported = errors.New("OSABI not supported")

	// ErrMachineNotSupported is returned if the machine type of an ELF file
	// is not supported.
	ErrMachineNotSupported = errors.New("machine type not supported")
)
