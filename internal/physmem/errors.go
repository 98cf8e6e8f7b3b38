// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package physmem

import "fmt"

// RefCountError is the panic value for reference count violations. Those are
// programming errors, so they are not returned as error.
type RefCountError struct {
	Page  Page
	Count int32
	Op    string
}

func (e *RefCountError) Error() string {
	return fmt.Sprintf("%s %s: invalid reference count %d", e.Op, e.Page, e.Count)
}
