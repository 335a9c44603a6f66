// Command reconai runs OSINT scans from the command line or serves the scan API.
package main

import (
	"os"

	"github.com/raysh454/reconai/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
