package main

import (
	"os"

	"github.com/stockbot/simcore/cmd/simcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
