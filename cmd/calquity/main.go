// ABOUTME: CLI entrypoint for calquity: chat, one-shot ask, the generation server, and backend inspection.
// ABOUTME: Errors from any command are printed once to stderr with a non-zero exit.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
