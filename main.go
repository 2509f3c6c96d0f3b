package main

import (
	"os"

	"github.com/ZIMkaRU/bfx-report/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
