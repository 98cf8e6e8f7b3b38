// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package guest provides the guest containers of the hypervisor. A [Guest]
// owns its extended page table tree and its lifecycle state. A [Manager]
// creates guests, runs them with a [Runner] and tears them down again.
//
// Guest execution itself is not part of this package. A [Runner] stands in
// for the virtual CPU layer and reports the guest's exit code.
package guest
