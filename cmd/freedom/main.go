package main

import (
	"os"

	"github.com/minqi/freedom/cmd/freedom/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
