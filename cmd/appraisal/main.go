// Command appraisal trains the price model and prices listing documents from the terminal.
package main

import (
	"os"

	"github.com/spherical-ai/appraisal/cmd/appraisal/commands"
	"github.com/spherical-ai/appraisal/cmd/appraisal/ui"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		ui.Failure("%v", err)
		os.Exit(1)
	}
}
