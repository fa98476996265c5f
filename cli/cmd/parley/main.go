// Parley CLI - chat orchestration command-line interface.
package main

import (
	"os"

	"github.com/parleyhq/parley/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
