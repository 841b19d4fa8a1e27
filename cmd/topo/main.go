// Command topo resolves system manifests, runs loop scenarios and reads
// back recorded runs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/topo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
