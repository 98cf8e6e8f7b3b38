// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import "fmt"

// Status is the lifecycle state of a [Guest].
type Status int

const (
	// StatusCreated is the state of a new guest that can be populated.
	StatusCreated Status = iota
	// StatusRunnable is set once the guest is handed to its [Runner].
	StatusRunnable
	// StatusExited is set once the [Runner] returned.
	StatusExited
	// StatusDestroyed is set once the guest's memory is torn down.
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunnable:
		return "runnable"
	case StatusExited:
		return "exited"
	case StatusDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
