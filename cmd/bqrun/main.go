// Package main provides the bqrun command.
package main

import (
	"os"

	"github.com/leapstack-labs/bqrun/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
