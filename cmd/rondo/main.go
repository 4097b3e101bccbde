// rondo pairs participants week by week and announces the pairings.
package main

import (
	"os"

	"rondo/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
