package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the shared result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached listing from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.shared == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No shared cache configured (set CASEDESK_REDIS_URL)")
				return nil
			}
			n, err := a.shared.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached listings\n", n)
			return nil
		},
	})

	return cmd
}
