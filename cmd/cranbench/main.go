// Package main provides the entry point for the cranbench CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/cranbench/cmd/cranbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
