package main

import (
	"os"

	"github.com/aevon-lab/project-tpms/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
