package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/ledger"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the ledger",
		Long: `Report signed totals and per-category breakdowns over any filter. Income
counts positive and expenses negative. Transfers count only for the side that
falls inside --account, so without an account filter they net to zero.`,
	}

	cmd.AddCommand(totalReportCmd())
	cmd.AddCommand(breakdownReportCmd())

	return cmd
}

func totalReportCmd() *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "total",
		Short: "Print the signed total of matching transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter, err := filters.filter(time.Now())
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			total, err := a.agg.TotalAmount(ctx, filter)
			if err != nil {
				return err
			}
			m, err := a.money(ctx, false)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.StyleAmount(m.formatTotal(total), total.IsNegative()))
			return nil
		},
	}

	filters.register(cmd)
	return cmd
}

func breakdownReportCmd() *cobra.Command {
	var (
		filters filterFlags
		reveal  bool
	)

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Group matching transactions by category",
		Example: `  tally report breakdown --period this-month --category-type expense
  tally report breakdown --account wallet --from 2024-01-01 --to 2024-03-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter, err := filters.filter(time.Now())
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			m, err := a.money(ctx, reveal)
			if err != nil {
				return err
			}
			b, err := a.agg.GroupByCategory(ctx, filter, ledger.Options{HideValues: m.hide})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(b.Groups) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No transactions match."))
				return nil
			}

			fmt.Fprintln(out, cli.FormatTitle("Breakdown by category"))
			table := cli.NewTable(out, "Category", "Total", "Share", "Transactions")
			for _, g := range b.Groups {
				table.Row(g.Name(), m.formatTotal(g.Total), g.Percent.StringFixed(2)+"%", strconv.Itoa(g.Count))
			}
			table.Row("Total", m.formatTotal(b.Total), "", strconv.Itoa(b.Count))
			return table.Flush()
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&reveal, "reveal", false, "keep itemized amounts even when privacy mode is on")
	return cmd
}
