package main

import (
	"os"

	"github.com/custodia-labs/optiply-target/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
