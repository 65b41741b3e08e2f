// Command bouncer runs the Bouncer coordination server.
package main

import (
	"fmt"
	"os"

	"github.com/rescale-labs/bouncer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
