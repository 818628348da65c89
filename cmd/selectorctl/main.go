package main

import (
	"os"

	"github.com/execution-hub/choreographer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
