package main

import (
	"os"

	"github.com/willp-bl/eidas-mirror-sub003/cmd/eidasnode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
