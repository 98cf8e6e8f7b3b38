// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package boot

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/aibor/eptvmm/internal/guest"
)

const probeSize = 16

// ProbeRunner is a [guest.Runner] for hosts without a virtual CPU backend.
// It checks that the guest's entry point is backed by memory and exits
// with code 0.
func ProbeRunner() guest.Runner {
	return guest.RunnerFunc(probe)
}

func probe(ctx context.Context, g *guest.Guest) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	buf := make([]byte, probeSize)

	n, err := g.ReadAt(buf, int64(g.Entry()))
	if err != nil && n == 0 {
		return 0, fmt.Errorf("probe entry %s: %w", g.Entry(), err)
	}

	slog.Info("Guest entry point probed",
		slog.Int("guest", g.ID()),
		slog.String("entry", g.Entry().String()),
		slog.String("code", hex.EncodeToString(buf[:n])))

	return 0, nil
}
