package main

import (
	"os"

	"github.com/kailas-cloud/creditgate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
