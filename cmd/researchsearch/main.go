// Package main provides the entry point for the researchsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/researchsearch/cmd/researchsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
