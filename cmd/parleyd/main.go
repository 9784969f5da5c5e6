// Package main is the entry point for parleyd, the live conversation
// copilot server.
//
// Usage:
//
//	parleyd serve --config /etc/parley/config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/parleylabs/parley/cmd/parleyd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
