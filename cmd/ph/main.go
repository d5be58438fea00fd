package main

import (
	"os"

	"github.com/medpipe/pump-history-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
