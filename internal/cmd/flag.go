// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/aibor/eptvmm/internal/config"
)

const (
	name = "eptvmm"

	usageMessage = `Usage of 'eptvmm':
    eptvmm [flags...]

Boot a guest from the default image locations:
	eptvmm

Boot a guest with another kernel and without a disk:
	eptvmm -kernel=/path/to/kernel -noDisk

Settings can be read from a TOML file given with -config. Flags take
precedence over the file.

All eptvmm flags can also be provided via environment variable EPTVMM_ARGS:
	EPTVMM_ARGS="-memory=32 -debug" eptvmm

All eptvmm flags can also be provided via file ./.eptvmm-args, with one
argument per line.
`
)

type flags struct {
	cfg        config.Config
	configFile string
	flagSet    *flag.FlagSet

	version bool
	debug   bool
}

func newFlags(cfg config.Config, output io.Writer) *flags {
	flags := &flags{
		cfg: cfg,
	}

	flags.initFlagset(output)

	return flags
}

// parseArgs parses the arguments on top of the default configuration. If a
// config file is given, the arguments are parsed again on top of the file's
// configuration.
func parseArgs(args []string, output io.Writer) (*flags, error) {
	flags := newFlags(config.Default(), output)

	err := flags.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if flags.configFile != "" {
		cfg, err := config.Load(flags.configFile)
		if err != nil {
			return nil, flags.fail("config file", err)
		}

		flags = newFlags(cfg, output)

		err = flags.ParseArgs(args)
		if err != nil {
			return nil, err
		}
	}

	err = flags.cfg.Validate()
	if err != nil {
		return nil, flags.fail("invalid configuration", err)
	}

	return flags, nil
}

func (f *flags) ParseArgs(args []string) error {
	err := f.flagSet.Parse(args)
	if err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	// With version flag, just print the version and exit. Using [ErrHelp]
	// the main binary is supposed to return with a non error exit code.
	if f.version {
		err := f.printVersionInformation()
		return &ParseArgsError{msg: "version requested", err: err}
	}

	if f.flagSet.NArg() > 0 {
		return f.fail(fmt.Sprintf("unexpected arguments: %v", f.flagSet.Args()), nil)
	}

	return nil
}

func (f *flags) initFlagset(output io.Writer) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = f.usage

	flagSet.Var(
		(*FilePath)(&f.configFile),
		"config",
		"TOML config file to read settings from",
	)

	flagSet.Var(
		(*FilePath)(&f.cfg.Kernel),
		"kernel",
		"path to guest kernel ELF executable",
	)

	flagSet.Var(
		(*FilePath)(&f.cfg.Boot),
		"boot",
		"path to guest boot sector",
	)

	flagSet.Var(
		&addrValue{Value: &f.cfg.Entry},
		"entry",
		"guest physical address the boot sector is loaded to and run from",
	)

	flagSet.Var(
		&limitedUintValue{
			Value: &f.cfg.Memory,
			min:   config.MemoryMin,
			max:   config.MemoryMax,
		},
		"memory",
		"guest memory (in MiB)",
	)

	flagSet.Var(
		&limitedUintValue{
			Value: &f.cfg.HostPages,
			min:   config.HostPagesMin,
			max:   config.HostPagesMax,
		},
		"hostPages",
		"number of host pages available for guest memory and page tables",
	)

	flagSet.TextVar(
		&f.cfg.Backing,
		"backing",
		f.cfg.Backing,
		"host memory backing: mmap, heap",
	)

	flagSet.BoolVar(
		&f.cfg.StaticAlloc,
		"prealloc",
		f.cfg.StaticAlloc,
		"back all guest memory before loading the kernel",
	)

	flagSet.StringVar(
		&f.cfg.Dump,
		"dump",
		f.cfg.Dump,
		"write a cpio snapshot of guest memory to this path before running",
	)

	flagSet.BoolVar(
		&f.cfg.Disk.Disabled,
		"noDisk",
		f.cfg.Disk.Disabled,
		"do not provision a disk image, as for nested guests",
	)

	flagSet.Var(
		(*FilePath)(&f.cfg.Disk.Template),
		"diskTemplate",
		"clean disk image new disks are copied from",
	)

	flagSet.StringVar(
		&f.cfg.Disk.Pattern,
		"diskPattern",
		f.cfg.Disk.Pattern,
		"path format of new disk images, %d is the disk number",
	)

	flagSet.BoolVar(
		&f.debug,
		"debug",
		f.debug,
		"enable debug output",
	)

	flagSet.BoolVar(
		&f.version,
		"version",
		f.version,
		"show version and exit",
	)

	f.flagSet = flagSet
}

// fail fails like flag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *flags) printVersionInformation() error {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo
	}

	fmt.Fprintf(f.flagSet.Output(), "Version: %s\n", buildInfo.Main.Version)

	return ErrHelp
}

func (f *flags) usage() {
	fmt.Fprint(f.flagSet.Output(), usageMessage)
	fmt.Fprintln(f.flagSet.Output(), "\nFlags:")
	f.flagSet.PrintDefaults()
}
