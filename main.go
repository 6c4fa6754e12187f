package main

import (
	"os"

	"github.com/codeguard/codeguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
