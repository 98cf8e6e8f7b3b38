// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aibor/eptvmm/internal/boot"
	"github.com/aibor/eptvmm/internal/exitcode"
	"github.com/aibor/eptvmm/internal/guest"
)

const localConfigFile = ".eptvmm-args"

// IO provides input and output details for the command.
type IO struct {
	Stderr io.Writer
}

func loadFlags(args []string, cfg IO) (*flags, error) {
	args, err := MergedArgs(args, os.DirFS("."), localConfigFile)
	if err != nil {
		return nil, err
	}

	// Skip program name.
	if len(args) > 0 {
		args = args[1:]
	}

	flags, err := parseArgs(args, cfg.Stderr)
	if err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	return flags, nil
}

func run(ctx context.Context, flags *flags, runner guest.Runner) error {
	slog.Debug("Booting guest",
		slog.String("kernel", flags.cfg.Kernel),
		slog.String("boot", flags.cfg.Boot),
		slog.Uint64("memory_mib", flags.cfg.Memory),
		slog.Bool("disk", !flags.cfg.Disk.Disabled))

	err := boot.Run(ctx, flags.cfg, runner)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	return nil
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help is requested. So exit without error
	// in this case.
	if errors.Is(err, ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without an error.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return -1
}

func handleRunError(err error) int {
	exitCode, isGuestExit := exitcode.From(err)
	if err == nil {
		return exitCode
	}

	// Do not print the error in case the guest ran and exited with a
	// non-zero exit code.
	if !isGuestExit {
		slog.Error(err.Error())
	}

	return exitCode
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	setupLogging(cfg.Stderr, false)

	flags, err := loadFlags(args, cfg)
	if err != nil {
		return handleParseArgsError(err)
	}

	setupLogging(cfg.Stderr, flags.debug)

	err = run(ctx, flags, boot.ProbeRunner())
	if err != nil {
		return handleRunError(err)
	}

	return 0
}
