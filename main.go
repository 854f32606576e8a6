package main

import (
	"github.com/mkerring/pagetrace/cmd"
)

// main is the entry point for the pagetrace service.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
