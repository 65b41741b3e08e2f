// Package cli provides the command-line interface for the Bouncer server.
package cli

import (
	"github.com/spf13/cobra"
)

// Version can be overridden at link time with -ldflags "-X", or left at
// its dev default otherwise.
var Version = "v0.1.0-dev"

// NewRootCmd creates the root "bouncer" command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bouncer",
		Short: "Bouncer - HTTP-fronted coordination primitives",
		Long: `Bouncer exposes token buckets, semaphores, events, counters,
watchdogs, and barriers as URL-addressable resources over HTTP, so
processes can coordinate across machines with short blocking requests.`,
		Version: Version,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
