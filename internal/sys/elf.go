// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// IdentSize is the number of bytes of the ELF identification at the start of
// an ELF file.
const IdentSize = elf.EI_NIDENT

// CheckELFMagic reads the ELF identification from the start of the given
// reader and checks the magic number.
//
// It returns [ErrNotExecutable] if the magic does not match and [ErrIO] if
// not enough bytes could be read.
func CheckELFMagic(reader io.ReaderAt) error {
	ident := make([]byte, IdentSize)

	n, err := reader.ReadAt(ident, 0)
	if n < len(elf.ELFMAG) {
		if err == nil || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: file too short", ErrNotExecutable)
		}

		return fmt.Errorf("%w: read ident: %w", ErrIO, err)
	}

	if !bytes.Equal(ident[:len(elf.ELFMAG)], []byte(elf.ELFMAG)) {
		return fmt.Errorf("%w: bad magic % x", ErrNotExecutable, ident[:4])
	}

	return nil
}

// ValidateELF validates that the ELF file is an x86 executable a guest can
// boot.
func ValidateELF(hdr elf.FileHeader) error {
	switch hdr.OSABI {
	case elf.ELFOSABI_NONE, elf.ELFOSABI_LINUX:
		// supported, pass
	default:
		return fmt.Errorf("%w: %w: %s", ErrNotExecutable, ErrOSABINotSupported, hdr.OSABI)
	}

	switch hdr.Machine {
	case elf.EM_X86_64, elf.EM_386:
		// supported, pass
	default:
		return fmt.Errorf("%w: %w: %s", ErrNotExecutable, ErrMachineNotSupported, hdr.Machine)
	}

	if hdr.Type != elf.ET_EXEC {
		return fmt.Errorf("%w: type %s", ErrNotExecutable, hdr.Type)
	}

	return nil
}
