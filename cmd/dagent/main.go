// Package main provides the entry point for the dagent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/dagent-ai/dagent/cmd/dagent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
