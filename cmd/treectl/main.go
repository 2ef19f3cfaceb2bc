package main

import (
	"os"

	"github.com/bcnelson/workspace-tree/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
