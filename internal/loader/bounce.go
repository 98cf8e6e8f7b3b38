// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package loader

import (
	"errors"
	"fmt"

	"github.com/aibor/eptvmm/internal/addrspace"
)

// acquireBounce maps a zeroed page at the scratch address and returns its
// memory. The page is only referenced by the scratch mapping, so
// [Loader.releaseBounce] reclaims it unless somebody else took a reference
// in between.
func (l *Loader) acquireBounce() ([]byte, error) {
	page, err := l.mem.Alloc(true)
	if err != nil {
		return nil, fmt.Errorf("allocate bounce buffer: %w", err)
	}

	if err := l.space.Map(l.scratch, page, addrspace.PermReadWrite); err != nil {
		return nil, errors.Join(
			fmt.Errorf("map bounce buffer: %w", err),
			l.mem.Free(page),
		)
	}

	buf, err := l.space.Bytes(l.scratch, true)
	if err != nil {
		l.releaseBounce()
		return nil, fmt.Errorf("bounce buffer memory: %w", err)
	}

	return buf, nil
}

func (l *Loader) releaseBounce() {
	l.space.Unmap(l.scratch)
}
