// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package exitcode carries guest exit codes through error returns.
package exitcode

import (
	"errors"
	"fmt"
)

// Error is a non-zero exit code a guest terminated with.
type Error int

func (e Error) Error() string {
	return fmt.Sprintf("guest exited with non-zero exit code: %d", e)
}

func (Error) Is(other error) bool {
	_, ok := other.(Error)
	return ok
}

// Code returns the exit code as basic int type.
func (e Error) Code() int {
	return int(e)
}

// From returns the process exit code for the given error and whether the
// error carries a guest exit code.
//
// A nil error is exit code 0. An [Error] anywhere in the chain yields its
// [Error.Code]. Any other error is exit code -1.
func From(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var exitErr Error
	if errors.As(err, &exitErr) {
		return exitErr.Code(), true
	}

	return -1, false
}
