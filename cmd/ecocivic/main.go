package main

import (
	"fmt"
	"os"

	"ecocivic/api/internal/cli"
	"ecocivic/api/internal/style"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		os.Exit(cli.GetExitCode(err))
	}
}
