// Package main provides docstore, a JSON document store over SQLite and PostgreSQL.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// ExitErrors were already reported through the output formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
