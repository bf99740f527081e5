package main

import (
	"os"

	"github.com/jtarleton/lorebook/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
