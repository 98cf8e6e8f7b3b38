// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Command eptvmm boots a guest kernel into EPT backed guest memory.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aibor/eptvmm/internal/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGABRT,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP,
	)

	exitCode := cmd.Run(ctx, os.Args, cmd.IO{Stderr: os.Stderr})

	cancel()
	os.Exit(exitCode)
}
