package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
)

const defaultIconColor = "#5B8DEF"

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage accounts",
		Long:    `List, add, update and delete the cash, bank and credit accounts money moves between.`,
	}

	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(addAccountCmd())
	cmd.AddCommand(updateAccountCmd())
	cmd.AddCommand(deleteAccountCmd())

	return cmd
}

func listAccountsCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			accounts, err := a.ledger.Accounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to get accounts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No accounts yet. Use 'tally accounts add' to create one."))
				return nil
			}

			m, err := a.money(ctx, reveal)
			if err != nil {
				return err
			}

			table := cli.NewTable(out, "ID", "Name", "Type", "Balance", "Available", "Transactions")
			for _, account := range accounts {
				available := ""
				if credit, ok := account.AvailableCredit(); ok {
					available = m.format(credit)
				}
				count, err := a.store.CountAccountReferences(ctx, account.ID)
				if err != nil {
					return err
				}
				table.Row(account.ID, account.Name, string(account.Type),
					m.format(account.Balance), available, strconv.Itoa(count))
			}
			return table.Flush()
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "show amounts even when privacy mode is on")
	return cmd
}

func addAccountCmd() *cobra.Command {
	var (
		id          string
		accountType string
		opening     string
		creditLimit string
		icon        string
		color       string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			account := &model.Account{
				ID:        id,
				Name:      args[0],
				Type:      model.AccountType(accountType),
				IconName:  icon,
				IconColor: color,
			}
			amount, err := parseMoney(opening)
			if err != nil {
				return err
			}
			account.OpeningBalance = amount
			if creditLimit != "" {
				limit, err := parseMoney(creditLimit)
				if err != nil {
					return err
				}
				account.CreditLimit = &limit
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.ledger.CreateAccount(ctx, account); err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created account %q (ID: %s)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "account ID (generated when empty)")
	cmd.Flags().StringVar(&accountType, "type", string(model.AccountTypeBank), "account type (cash, bank, credit)")
	cmd.Flags().StringVar(&opening, "opening", "0", "opening balance")
	cmd.Flags().StringVar(&creditLimit, "credit-limit", "", "credit limit for credit accounts")
	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&color, "color", defaultIconColor, "icon background color (#RRGGBB)")

	return cmd
}

func updateAccountCmd() *cobra.Command {
	var (
		name        string
		accountType string
		opening     string
		creditLimit string
		icon        string
		color       string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an account",
		Long: `Update an account's details. Changing the opening balance shifts the
current balance by the same amount.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if !anyChanged(cmd, "name", "type", "opening", "credit-limit", "icon", "color") {
				return fmt.Errorf("must specify at least one field to update")
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			account, err := a.store.GetAccount(ctx, args[0])
			if err != nil {
				return err
			}

			if flags.Changed("name") {
				account.Name = name
			}
			if flags.Changed("type") {
				account.Type = model.AccountType(accountType)
			}
			if flags.Changed("icon") {
				account.IconName = icon
			}
			if flags.Changed("color") {
				account.IconColor = color
			}
			if flags.Changed("opening") {
				if account.OpeningBalance, err = parseMoney(opening); err != nil {
					return err
				}
			}
			if flags.Changed("credit-limit") {
				account.CreditLimit = nil
				if creditLimit != "" {
					limit, err := parseMoney(creditLimit)
					if err != nil {
						return err
					}
					account.CreditLimit = &limit
				}
			}

			if err := a.ledger.UpdateAccount(ctx, account); err != nil {
				return fmt.Errorf("failed to update account: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated account %q", account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&accountType, "type", "", "new type (cash, bank, credit)")
	cmd.Flags().StringVar(&opening, "opening", "", "new opening balance")
	cmd.Flags().StringVar(&creditLimit, "credit-limit", "", "new credit limit, empty to clear")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon name")
	cmd.Flags().StringVar(&color, "color", "", "new icon background color (#RRGGBB)")

	return cmd
}

func deleteAccountCmd() *cobra.Command {
	var (
		policy policyFlags
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Long: `Delete an account. By default the delete is refused while transactions
reference the account. --cascade deletes those transactions as well and
--reassign-to moves them to another account, carrying their balance effects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if policy.cascade && !yes {
				count, err := a.store.CountAccountReferences(ctx, id)
				if err != nil {
					return err
				}
				if count > 0 {
					ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(),
						fmt.Sprintf("Delete account %q and its %d transactions?", id, count))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
						return nil
					}
				}
			}

			if policy.cascade {
				a.autoBackup(ctx, "delete-account")
			}
			if err := a.ledger.DeleteAccount(ctx, id, policy.policy()); err != nil {
				return fmt.Errorf("failed to delete account: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted account %q", id)))
			return nil
		},
	}

	policy.register(cmd, "account")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
