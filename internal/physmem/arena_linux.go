// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package physmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func mmapArena(size int) ([]byte, func() error, error) {
	arena, err := unix.Mmap(
		-1,
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_NORESERVE,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}

	release := func() error {
		err := unix.Munmap(arena)
		if err != nil {
			return fmt.Errorf("munmap: %w", err)
		}

		return nil
	}

	return arena, release, nil
}
