// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package physmem

import (
	"fmt"

	"github.com/aibor/eptvmm/internal/sys"
)

func mmapArena(_ int) ([]byte, func() error, error) {
	return nil, nil, fmt.Errorf("%w: mmap backed arena", sys.ErrNotSupported)
}
