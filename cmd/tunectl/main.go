package main

import (
	"errors"
	"os"

	"github.com/halvard/tunectl/cmd/tunectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrPendingChanges) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
