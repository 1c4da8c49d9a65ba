package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/spf13/cobra"
)

func newAssignCmd(g *globalOptions) *cobra.Command {
	var (
		assignee string
		kindArg  string
		remark   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "assign --to HANDLER [--kind personal|batch] APPLICATION_NO...",
		Short: "Dispatch cases to a handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cases.ParseKind(kindArg)
			if err != nil {
				return err
			}
			sel := cases.NewSelection()
			sel.Add(args...)
			if err := sel.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := commandContext(ctx, timeout)
			defer cancel()

			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.client.Assign(ctx, client.AssignRequest{
				ApplicationNos: sel.IDs(),
				Assignee:       assignee,
				Kind:           kind,
				Remark:         remark,
			})
			if err != nil {
				if client.IsUnauthorized(err) {
					return fmt.Errorf("%w (run 'casedesk token set')", err)
				}
				return err
			}

			// Listings now show stale assignees.
			if err := a.coord.ClearCache(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("Cache clear incomplete")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d assigned to %s\n", len(result.Succeeded), assignee)
			for _, f := range result.Failed {
				fmt.Fprintf(out, "rejected %s: %s\n", f.ApplicationNo, f.Reason)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d cases rejected", len(result.Failed), result.Total())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&assignee, "to", "", "Handler receiving the cases")
	cmd.Flags().StringVar(&kindArg, "kind", string(cases.KindPersonal), "Case kind: personal or batch")
	cmd.Flags().StringVar(&remark, "remark", "", "Optional remark")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort after this duration")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
