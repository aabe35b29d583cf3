package main

import (
	"os"

	"github.com/emcshop-dev/emcshop/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
