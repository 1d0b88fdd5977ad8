// Package main provides the entry point for the inkwell CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/inkwell/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
