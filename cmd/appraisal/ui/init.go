// Package ui provides terminal output helpers for the appraisal CLI.
package ui

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	noColorFlag  bool
	verboseFlag  bool
	progressFlag bool
)

// isTerminal is replaced in tests.
var isTerminal = func(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// InitUI applies the color and verbosity flags. Colors follow stdout, where
// reports go; bars and spinners follow stderr, where they draw.
func InitUI(noColor, verbose bool) {
	noColorFlag = noColor || !isTerminal(os.Stdout)
	progressFlag = !noColor && isTerminal(os.Stderr)
	verboseFlag = verbose

	if noColorFlag {
		color.NoColor = true
	}
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verboseFlag
}
