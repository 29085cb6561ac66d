package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
)

func balancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Check stored account balances against the ledger",
		Long: `Every account's stored balance should equal its opening balance plus the
effect of each transaction touching it. verify recomputes that from scratch
and reports differences; repair also corrects them.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Report accounts whose balance has drifted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBalances(cmd, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "repair",
		Short: "Rewrite drifted balances from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBalances(cmd, true)
		},
	})

	return cmd
}

func runBalances(cmd *cobra.Command, repair bool) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var drifts []model.BalanceDrift
	if repair {
		a.autoBackup(ctx, "repair")
		drifts, err = a.ledger.RepairBalances(ctx)
	} else {
		drifts, err = a.ledger.VerifyBalances(ctx)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(drifts) == 0 {
		fmt.Fprintln(out, cli.FormatSuccess("All balances match the ledger"))
		return nil
	}

	m, err := a.money(ctx, true)
	if err != nil {
		return err
	}
	table := cli.NewTable(out, "Account", "Stored", "Expected", "Difference")
	for _, d := range drifts {
		table.Row(d.AccountID, m.format(d.Stored), m.format(d.Expected), m.format(d.Difference()))
	}
	if err := table.Flush(); err != nil {
		return err
	}

	if repair {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Repaired %d accounts", len(drifts))))
		return nil
	}
	fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d accounts drifted. Run 'tally balances repair' to fix them.", len(drifts))))
	return nil
}
