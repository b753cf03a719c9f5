package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tripledger/internal/core"
	"tripledger/internal/export"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Filters filterFlags
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the expense summary and category totals",
		Long: `Print total, average per day, top category and trip count for the
filtered expenses, followed by totals per category.

Example:
  tripledger summary --start 2023-03-01
  tripledger summary --trip 2 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd.Context(), opts, cmd)
		},
	}
	opts.Filters.register(cmd)

	return cmd
}

type summaryView struct {
	Period     string               `json:"period"`
	Summary    core.Summary         `json:"summary"`
	Categories []core.CategoryTotal `json:"categories"`
}

func (v summaryView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period:          %s\n", v.Period)
	fmt.Fprintf(&b, "Total:           %s\n", v.Summary.Total.Fixed())
	fmt.Fprintf(&b, "Average per day: %s\n", v.Summary.AveragePerDay.Fixed())
	fmt.Fprintf(&b, "Top category:    %s (%s, %.1f%%)\n", v.Summary.TopCategory, v.Summary.TopCategoryAmount.Fixed(), v.Summary.TopCategoryPercentage)
	fmt.Fprintf(&b, "Trips:           %d\n", v.Summary.TripCount)
	fmt.Fprintf(&b, "Days:            %d", v.Summary.TotalDays)
	for _, c := range v.Categories {
		fmt.Fprintf(&b, "\n  %-16s %10s", c.Category, c.Total.Fixed())
	}
	return b.String()
}

func runSummary(ctx context.Context, opts *SummaryOptions, cmd *cobra.Command) error {
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

	return opts.formatter(cmd).Success(summaryView{
		Period:     export.Period(c),
		Summary:    h.Ledger.Summary(c),
		Categories: h.Ledger.CategoryTotals(c),
	})
}
