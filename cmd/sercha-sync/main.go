package main

import (
	"os"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driving/cli"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, buildDate); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
