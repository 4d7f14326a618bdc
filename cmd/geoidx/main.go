// Package main provides the entry point for the geoidx CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/geoidx/cmd/geoidx/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
