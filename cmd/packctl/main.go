package main

import (
	"os"

	"github.com/owenwright/cookies/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
