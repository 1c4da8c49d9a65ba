package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/Sternrassler/casedesk-client/internal/terminal"
	"github.com/Sternrassler/casedesk-client/pkg/workflow"
	"github.com/spf13/cobra"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive case session",
		Long: `Start an interactive case session in the terminal.

Ctrl-C while a listing loads stops the load. Ctrl-C at a prompt ends the
session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			view := terminal.New(cmd.InOrStdin(), cmd.OutOrStdout())
			a, err := newApp(ctx, g, withProgress(view.Progress))
			if err != nil {
				return err
			}
			defer a.Close()

			runner := workflow.NewRunner(workflow.Deps{
				View:      view,
				Loader:    a.coord,
				Assigner:  a.client,
				Tokens:    a.tokens,
				ExportDir: exportDir,
			})

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt)
			defer signal.Stop(sigs)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-sigs:
						if !runner.Abort() {
							cancel()
							return
						}
					}
				}
			}()

			a.logger.Debug().Str("environment", a.cfg.Environment.Name).Msg("Interactive session started")
			if err := runner.Run(ctx); err != nil && !errors.Is(err, terminal.ErrInputClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "Directory for exports without an explicit path")
	return cmd
}
