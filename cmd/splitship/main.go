package main

import (
	"os"

	"github.com/nesium/splitship/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
