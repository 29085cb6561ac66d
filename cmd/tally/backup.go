package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot and restore the ledger database",
		Long: `Backups are full copies of the ledger kept in a "backups" directory next to
the database. tally also takes one automatically before imports, balance
repairs and cascading deletes unless backup.auto is false; only the five
newest automatic backups are kept.`,
	}

	cmd.AddCommand(backupCreateCmd())
	cmd.AddCommand(backupListCmd())
	cmd.AddCommand(backupRestoreCmd())
	cmd.AddCommand(backupDeleteCmd())

	return cmd
}

func backupCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create [tag]",
		Short: "Take a backup now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			backups, err := a.store.Backups()
			if err != nil {
				return err
			}
			var tag string
			if len(args) == 1 {
				tag = args[0]
			}
			info, err := backups.Create(ctx, tag, description)
			if err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created backup %q (%d transactions)", info.ID, info.Transactions)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "message", "m", "", "note stored with the backup")
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			backups, err := a.store.Backups()
			if err != nil {
				return err
			}
			list, err := backups.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No backups yet"))
				return nil
			}

			table := cli.NewTable(out, "ID", "Created", "Accounts", "Categories", "Transactions", "Size", "Note")
			for _, b := range list {
				note := b.Description
				if b.Auto {
					note = cli.SubtleStyle.Render(note)
				}
				table.Row(b.ID,
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
					strconv.Itoa(b.Accounts),
					strconv.Itoa(b.Categories),
					strconv.Itoa(b.Transactions),
					humanSize(b.FileSize),
					note)
			}
			return table.Flush()
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the ledger with a backup",
		Long: `Replace the current database with a backup. The database being replaced
is kept next to it with a .before-restore suffix. Stop any running
'tally watch' first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			if !yes {
				ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Replace %s with backup %q?", cfg.DatabasePath, args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing restored"))
					return nil
				}
			}

			if err := storage.RestoreBackup(cfg.DatabasePath, args[0]); err != nil {
				return fmt.Errorf("failed to restore backup: %w", err)
			}

			// Older backups may predate the current schema.
			store, err := initStorage(ctx, cfg.DatabasePath)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Restored backup %q", args[0])))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func backupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			backups, err := a.store.Backups()
			if err != nil {
				return err
			}
			if err := backups.Delete(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted backup %q", args[0])))
			return nil
		},
	}
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
