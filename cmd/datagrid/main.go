// Package main provides the datagrid CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/datagrid/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
