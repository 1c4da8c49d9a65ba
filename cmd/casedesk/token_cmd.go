package main

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/token"
	"github.com/spf13/cobra"
)

func newTokenCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored SSO token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [TOKEN]",
		Short: "Store a token, read from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 1 {
				value = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", cases.ErrEmptyInput)
				}
				value = line
			}
			t := token.New(value)
			if t.Value == "" {
				return fmt.Errorf("token: %w", cases.ErrEmptyInput)
			}

			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tokens.Save(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s saved\n", t.Masked())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored token, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.tokens.Load(cmd.Context())
			if errors.Is(err, token.ErrNoToken) {
				fmt.Fprintln(cmd.OutOrStdout(), "No token stored")
				return nil
			}
			if err != nil {
				return err
			}
			state := "valid"
			if t.Invalid {
				state = "rejected by backend"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, saved %s ago)\n", t.Masked(), state, t.Age().Truncate(time.Second))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token cleared")
			return nil
		},
	})

	return cmd
}
