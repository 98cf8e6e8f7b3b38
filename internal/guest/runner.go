// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import "context"

// Runner executes a guest until it exits.
type Runner interface {
	// Run runs the guest and returns its exit code. A non-nil error means
	// the guest could not be run at all.
	Run(ctx context.Context, guest *Guest) (int, error)
}

// RunnerFunc is a function implementing [Runner].
type RunnerFunc func(ctx context.Context, guest *Guest) (int, error)

// Run implements [Runner].
func (f RunnerFunc) Run(ctx context.Context, guest *Guest) (int, error) {
	return f(ctx, guest)
}
