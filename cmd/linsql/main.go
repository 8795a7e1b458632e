// Package main provides the linsql command line.
package main

import (
	"os"

	"github.com/Konsultn-Engineering/linsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
