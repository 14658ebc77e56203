// Package main is the entry point for the tfl binary.
package main

import (
	"os"

	"tfl-lake/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
