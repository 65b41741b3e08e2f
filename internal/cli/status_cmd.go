package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale-labs/bouncer/internal/bouncerclient"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running Bouncer instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bouncerclient.New(addr)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			ready, err := c.Ready(ctx)
			if err != nil {
				return fmt.Errorf("bouncer not reachable at %s: %w", addr, err)
			}
			fmt.Printf("Bouncer at %s\n", addr)
			fmt.Printf("  Ready: %v\n", ready)

			entries, err := c.Registry(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch registry: %w", err)
			}
			fmt.Printf("  Resources: %d\n", len(entries))
			for _, e := range entries {
				fmt.Printf("    %s/%s: %+v\n", e.Kind, e.Name, e.Stats)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Bouncer server base URL")

	return cmd
}
