// Package main is the command-line entry point for the Lyra player.
//
// Build:
//
//	go build -o build/lyra ./cmd
//
// Run:
//
//	./build/lyra list
//	./build/lyra play "Midnight Train"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func main() {
	root := newRootCmd(afero.NewOsFs(), os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
