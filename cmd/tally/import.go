package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from bank exports",
	}
	cmd.AddCommand(importOFXCmd())
	return cmd
}

func importOFXCmd() *cobra.Command {
	var (
		opts   ofx.ImportOptions
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ofx <files...>",
		Short: "Import OFX/QFX statements into an account",
		Long: `Import statement entries from OFX or QFX files exported by your bank.
Credits become income under --income-category and debits become expenses
under --expense-category, all on --account. Entries already imported are
skipped, so the same file can be imported again safely.`,
		Example: `  tally import ofx ~/Downloads/checking_jan.qfx --account bank \
    --income-category salary --expense-category uncategorized
  tally import ofx ~/Downloads/*.qfx --account bank --income-category salary \
    --expense-category misc --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import",
				"Entries imported so far are kept. Run the same import again to finish.")
			ctx, stop := handler.HandleInterrupts(cmd.Context())
			defer stop()

			parser := ofx.NewParser()
			var entries []ofx.Entry
			for _, path := range files {
				parsed, err := parseStatement(ctx, parser, path)
				if err != nil {
					return err
				}
				entries = append(entries, parsed...)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, cli.FormatWarning("No transactions found in any file"))
				return nil
			}

			if dryRun {
				table := cli.NewTable(out, "Date", "Amount", "Payee", "Statement", "FITID")
				for _, e := range entries {
					table.Row(e.Date.Format(dateLayout), e.Amount.StringFixed(2), e.Payee, e.StatementAccount, e.FITID)
				}
				if err := table.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d entries would be considered", len(entries))))
				return nil
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.autoBackup(ctx, "import")
			progress := cli.NewProgress(cmd.ErrOrStderr(), len(entries), "Importing transactions...")
			result, err := ofx.NewImporter(a.ledger, a.metrics).Import(ctx, entries, opts, progress.Step)
			if err != nil {
				if handler.WasInterrupted() || errors.Is(err, ctx.Err()) {
					return nil
				}
				return fmt.Errorf("import stopped after %d entries: %w", result.Imported, err)
			}
			progress.Done()

			summary := fmt.Sprintf("  • Files: %d\n  • Imported: %d\n  • Already present or empty: %d",
				len(files), result.Imported, result.Skipped)
			fmt.Fprintln(out, cli.RenderBox("Import complete", summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account", "", "account the statement belongs to")
	cmd.Flags().StringVar(&opts.IncomeCategoryID, "income-category", "", "category for credits")
	cmd.Flags().StringVar(&opts.ExpenseCategoryID, "expense-category", "", "category for debits")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "list what would be imported without saving")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("income-category")
	_ = cmd.MarkFlagRequired("expense-category")

	return cmd
}

// expandFiles resolves glob patterns, keeping plain paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

func parseStatement(ctx context.Context, parser *ofx.Parser, path string) ([]ofx.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	entries, err := parser.ParseFile(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	slog.Info("Processed file", "file", filepath.Base(path), "entries", len(entries))
	return entries, nil
}
