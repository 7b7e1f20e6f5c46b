// Package main provides the entry point for the ramsok CLI.
package main

import (
	"os"

	"github.com/ramsok/ramsok/cmd/ramsok/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
