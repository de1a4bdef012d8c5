package main

import (
	"os"

	"github.com/lawrencejones/pglake/cmd/pglake/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
