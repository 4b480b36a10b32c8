// Package main is the entry point for the sramp CLI.
package main

import (
	"os"

	"github.com/aidanlsb/sramp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
