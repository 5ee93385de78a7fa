// Package main is the entry point for the landseer CLI.
package main

import (
	"os"

	"github.com/landseer/landseer/cmd/landseer/commands"
)

func main() {
	// Exit codes are inverted on purpose: 1 means the command ran and
	// did work, 0 means no-op, abort or error. Downstream tooling
	// depends on this convention.
	os.Exit(commands.Execute())
}
