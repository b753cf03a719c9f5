package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"tripledger/internal/export"
	apphttp "tripledger/internal/http"
	"tripledger/internal/report"
)

// filterFlags are the expense filters shared by export and summary.
type filterFlags struct {
	Search   string
	Status   string
	Category string
	Trip     string
	Start    string
	End      string
	Undated  string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Search, "search", "", "match merchant, category or trip")
	cmd.Flags().StringVar(&f.Status, "status", "", "expense status (Pending|Approved|Reimbursed)")
	cmd.Flags().StringVar(&f.Category, "category", "", "expense category")
	cmd.Flags().StringVar(&f.Trip, "trip", "", "trip name or id")
	cmd.Flags().StringVar(&f.Start, "start", "", "first day, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.End, "end", "", "last day, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.Undated, "undated", "include", "records with unparseable dates in ranged queries (include|exclude)")
}

// criteria parses the flags with the same rules as the API query string.
func (f *filterFlags) criteria() (report.ExpenseCriteria, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"search": f.Search, "status": f.Status, "category": f.Category,
		"trip": f.Trip, "start": f.Start, "end": f.End, "undated": f.Undated,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	c, err := apphttp.ParseExpenseCriteria(q)
	if err != nil {
		return report.ExpenseCriteria{}, WrapExitError(ExitCommandError, "invalid filter", err)
	}
	return c, nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out     string
	Filters filterFlags
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <expenses|report>",
		Short: "Export expenses or the expense report as CSV",
		Long: `Export the filtered expenses, or a one-row summary report, as CSV.

Without --out the file is written to the current directory as
expenses-<date>.csv or expense-report-<date>.csv. Use --out - for stdout.

Example:
  tripledger export expenses --trip "Berlin Client Meeting"
  tripledger export report --start 2023-03-01 --end 2023-03-31 --out march.csv`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"expenses", "report"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (- for stdout)")
	opts.Filters.register(cmd)

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, what string, cmd *cobra.Command) error {
	if what != "expenses" && what != "report" {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown export %q: must be expenses or report", what))
	}
	c, err := opts.Filters.criteria()
	if err != nil {
		return err
	}

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	h, err := openLedger(ctx, cfg, logger, nil)
	if err != nil {
		return WrapExitError(ExitFailure, "open ledger", err)
	}
	defer h.Close()

	var (
		data     []byte
		filename string
	)
	switch what {
	case "expenses":
		rows := export.ExpenseRows(h.Ledger.ListExpenses(c))
		data, err = export.Encoder{Columns: export.ExpenseColumns}.Encode(rows)
		filename = export.ExpensesFilename(h.Ledger.Now())
	case "report":
		rows := export.ReportRows(h.Ledger.Summary(c), export.Period(c))
		data, err = export.Encoder{Columns: export.ReportColumns}.Encode(rows)
		filename = export.ReportFilename(h.Ledger.Now())
	}
	if errors.Is(err, export.ErrNoRows) {
		return WrapExitError(ExitFailure, "nothing to export", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "encode CSV", err)
	}

	out := opts.Out
	if out == "" {
		out = filename
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return WrapExitError(ExitFailure, "write export", err)
	}

	return opts.formatter(cmd).Success(exportResult{File: out, Bytes: len(data)})
}

type exportResult struct {
	File  string `json:"file"`
	Bytes int    `json:"bytes"`
}

func (r exportResult) String() string {
	return fmt.Sprintf("Wrote %s (%d bytes)", r.File, r.Bytes)
}
