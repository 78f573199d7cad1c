package main

import (
	"os"

	"github.com/leadflow-labs/refproc-cli/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
