// Package ui provides the colored, TTY-aware output the turbine CLI prints
// status and errors through (spec §4.H "CLI surface").
package ui

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"
)

// IsTTY is true when stdout appears to be a terminal rather than a pipe or
// file, matching the check the rest of the CLI uses to decide whether to
// colorize output.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// Default returns a cli.Ui that writes colored status/warning/error lines
// to stdout/stderr, or plain ones when stdout isn't a terminal or the
// NO_COLOR convention is set.
func Default() cli.Ui {
	if !IsTTY || os.Getenv("NO_COLOR") != "" {
		return &cli.BasicUi{Reader: os.Stdin, Writer: os.Stdout, ErrorWriter: os.Stderr}
	}
	return &cli.ColoredUi{
		Ui:          &cli.BasicUi{Reader: os.Stdin, Writer: os.Stdout, ErrorWriter: os.Stderr},
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColor{Code: int(color.FgYellow)},
		ErrorColor:  cli.UiColorRed,
	}
}
