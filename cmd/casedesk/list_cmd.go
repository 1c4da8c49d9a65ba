package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Sternrassler/casedesk-client/internal/terminal"
	"github.com/Sternrassler/casedesk-client/pkg/cases"
	"github.com/Sternrassler/casedesk-client/pkg/client"
	"github.com/Sternrassler/casedesk-client/pkg/export"
	"github.com/spf13/cobra"
)

type listOptions struct {
	where   []string
	filters []string
	sortKey string
	desc    bool
	csvPath string
	xlsx    string
	all     bool
	timeout time.Duration
}

func newListCmd(g *globalOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list personal|batch",
		Short: "Fetch every page of a case listing",
		Long: `Fetch every page of the personal or batch case listing.

--where conditions are sent to the backend. --filter conditions are applied
locally after fetching:

  text:   ownerName=zhang
  date:   applyDate=2024-01-01..2024-01-31
  select: statusCode=01,02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cases.ParseKind(args[0])
			if err != nil {
				return err
			}
			query, err := parseWhere(opts.where)
			if err != nil {
				return err
			}
			columns := cases.ColumnsFor(kind)
			filters := make([]cases.Filter, 0, len(opts.filters))
			for _, expr := range opts.filters {
				f, err := cases.ParseFilter(columns, expr)
				if err != nil {
					return err
				}
				filters = append(filters, f)
			}
			if opts.sortKey != "" {
				if _, ok := cases.FindColumn(columns, opts.sortKey); !ok {
					return fmt.Errorf("unknown sort column %q", opts.sortKey)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := commandContext(ctx, opts.timeout)
			defer cancel()

			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			records, err := a.coord.FetchWithCache(ctx, client.EndpointFor(kind), query, string(kind))
			if client.IsAborted(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Stopped.")
				return nil
			}
			if err != nil {
				return err
			}

			records = cases.Apply(records, filters...)
			if opts.sortKey != "" {
				records = cases.Sort(records, columns, opts.sortKey, opts.desc)
			} else {
				records = cases.SortDefault(records)
			}

			a.logger.Info().
				Str("kind", string(kind)).
				Int("records", len(records)).
				Dur("duration", time.Since(start)).
				Msg("Listed cases")

			if err := writeExport(opts.csvPath, export.FormatCSV, kind, columns, records); err != nil {
				return err
			}
			if err := writeExport(opts.xlsx, export.FormatXLSX, kind, columns, records); err != nil {
				return err
			}

			shown := columns
			if !opts.all {
				shown = cases.Visible(columns)
			}
			out := cmd.OutOrStdout()
			if err := terminal.PrintTable(out, shown, records); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d cases\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&opts.where, "where", nil, "Server-side condition key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Local filter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.sortKey, "sort", "", "Sort by column key")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Write the result to a CSV file")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "Write the result to an XLSX workbook")
	cmd.Flags().BoolVar(&opts.all, "all-columns", false, "Show folded columns too")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort the fetch after this duration")
	return cmd
}

func parseWhere(conds []string) (cases.Query, error) {
	query := cases.Query{}
	for _, c := range conds {
		key, value, ok := strings.Cut(c, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--where %q: expected key=value", c)
		}
		query[key] = strings.TrimSpace(value)
	}
	return query, nil
}

func writeExport(path string, format export.Format, kind cases.Kind, columns []cases.Column, records []cases.Record) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	werr := export.Write(f, format, string(kind), columns, records)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write %s: %w", path, werr)
	}
	return nil
}
