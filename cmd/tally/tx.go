package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/ledger"
	"github.com/Veraticus/tally/internal/model"
)

func txCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Record and browse transactions",
		Long: `Record income, expenses and transfers. Account balances follow every
change: adding applies the amount, editing applies the difference and deleting
reverses it.`,
	}

	cmd.AddCommand(addTxCmd())
	cmd.AddCommand(editTxCmd())
	cmd.AddCommand(deleteTxCmd())
	cmd.AddCommand(showTxCmd())
	cmd.AddCommand(listTxCmd())

	return cmd
}

// txFields are the editable transaction flags shared by add and edit.
type txFields struct {
	from     string
	to       string
	category string
	date     string
	notes    string
	amount   string
	txType   string
}

func (f *txFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "account the money leaves (expense, transfer) or arrives in (income)")
	cmd.Flags().StringVar(&f.to, "to", "", "destination account of a transfer")
	cmd.Flags().StringVar(&f.category, "category", "", "category ID")
	cmd.Flags().StringVar(&f.date, "date", "today", "date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
}

func addTxCmd() *cobra.Command {
	var (
		fields txFields
		id     string
	)

	cmd := &cobra.Command{
		Use:   "add <income|expense|transfer> <amount>",
		Short: "Record a transaction",
		Example: `  tally tx add expense 12.50 --from wallet --category groceries
  tally tx add income 3000 --from bank --category salary --date 2024-05-01
  tally tx add transfer 200 --from bank --to wallet`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			date, err := parseDate(fields.date, time.Now())
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			txn := &model.Transaction{
				ID:            id,
				Type:          model.TransactionType(args[0]),
				Amount:        amount,
				FromAccountID: fields.from,
				ToAccountID:   fields.to,
				CategoryID:    fields.category,
				Date:          date,
				Notes:         fields.notes,
			}
			newID, err := a.ledger.AddTransaction(ctx, txn)
			if err != nil {
				return fmt.Errorf("failed to add transaction: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded %s (ID: %s)", txn.Type, newID)))
			return nil
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "transaction ID (generated when empty)")

	return cmd
}

func editTxCmd() *cobra.Command {
	var fields txFields

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a transaction",
		Long: `Change any field of a transaction. Balances move by the difference between
the old and new versions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !anyChanged(cmd, "type", "amount", "from", "to", "category", "date", "notes") {
				return fmt.Errorf("must specify at least one field to change")
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			detail, err := a.ledger.FindTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			txn := detail.Transaction

			flags := cmd.Flags()
			if flags.Changed("type") {
				txn.Type = model.TransactionType(fields.txType)
			}
			if flags.Changed("amount") {
				if txn.Amount, err = parseMoney(fields.amount); err != nil {
					return err
				}
			}
			if flags.Changed("from") {
				txn.FromAccountID = fields.from
			}
			if flags.Changed("to") {
				txn.ToAccountID = fields.to
			}
			if flags.Changed("category") {
				txn.CategoryID = fields.category
			}
			if flags.Changed("date") {
				if txn.Date, err = parseDate(fields.date, time.Now()); err != nil {
					return err
				}
			}
			if flags.Changed("notes") {
				txn.Notes = fields.notes
			}

			if err := a.ledger.UpdateTransaction(ctx, &txn); err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated transaction %s", txn.ID)))
			return nil
		},
	}

	fields.register(cmd)
	cmd.Flags().StringVar(&fields.txType, "type", "", "new type (income, expense, transfer)")
	cmd.Flags().StringVar(&fields.amount, "amount", "", "new amount")

	return cmd
}

func deleteTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its balance effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.ledger.DeleteTransaction(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete transaction: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted transaction %s", args[0])))
			return nil
		},
	}
}

func showTxCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			detail, err := a.ledger.FindTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			m, err := a.money(ctx, reveal)
			if err != nil {
				return err
			}

			body := fmt.Sprintf("Date:     %s\nType:     %s\nAmount:   %s\nAccounts: %s\nCategory: %s",
				detail.Date.Format(dateLayout), detail.Type, m.formatDetail(*detail),
				accountsLabel(*detail), categoryLabel(*detail))
			if detail.Notes != "" {
				body += "\nNotes:    " + detail.Notes
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Transaction "+detail.ID, body))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "show the amount even when privacy mode is on")
	return cmd
}

func listTxCmd() *cobra.Command {
	var (
		filters filterFlags
		reveal  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
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
			details, err := a.agg.Transactions(ctx, filter, ledger.Options{HideValues: m.hide})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(details) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No transactions match."))
				return nil
			}

			table := cli.NewTable(out, "Date", "Type", "Amount", "Accounts", "Category", "Notes", "ID")
			for _, d := range details {
				table.Row(d.Date.Format(dateLayout), string(d.Type), m.formatDetail(d),
					accountsLabel(d), categoryLabel(d), d.Notes, d.ID)
			}
			return table.Flush()
		},
	}

	filters.register(cmd)
	cmd.Flags().BoolVar(&reveal, "reveal", false, "show amounts even when privacy mode is on")
	return cmd
}

func accountsLabel(d model.TransactionDetail) string {
	if d.Type.IsTransfer() && d.ToAccount != nil {
		return d.FromAccount.Name + " " + cli.TransferIcon + " " + d.ToAccount.Name
	}
	return d.FromAccount.Name
}

func categoryLabel(d model.TransactionDetail) string {
	if d.Category == nil {
		return "-"
	}
	return d.Category.Name
}
