// Package main provides the entry point for the notes CLI.
package main

import (
	"os"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
