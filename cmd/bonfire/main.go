package main

import (
	"fmt"
	"os"

	"github.com/roach88/bonfire/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// JSON mode already wrote the error to stdout.
		if format, _ := cmd.PersistentFlags().GetString("format"); format != "json" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
