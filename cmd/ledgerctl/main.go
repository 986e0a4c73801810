// Package main is the entry point for ledgerctl.
package main

import (
	"os"

	"networth/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
