// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package boot brings up a guest: it creates the guest, loads its kernel
// and boot sector, provisions its disk, runs it and tears it down again.
package boot
