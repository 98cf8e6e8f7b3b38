// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import "errors"

var (
	// ErrNotFound is returned if no guest with the requested ID exists.
	ErrNotFound = errors.New("guest not found")

	// ErrInvalidState is returned if the requested transition is not allowed
	// in the guest's current state.
	ErrInvalidState = errors.New("invalid guest state")
)
