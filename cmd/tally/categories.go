package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Manage income and expense categories",
		Long:    `List, add, update and delete the categories transactions are filed under.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var wanted []model.CategoryType
			for _, t := range types {
				wanted = append(wanted, model.CategoryType(t))
			}
			categories, err := a.ledger.Categories(ctx, wanted...)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(categories) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No categories found. Use 'tally categories add' to create one."))
				return nil
			}

			table := cli.NewTable(out, "ID", "Name", "Type", "Color", "Transactions")
			for _, c := range categories {
				count, err := a.store.CountCategoryReferences(ctx, c.ID)
				if err != nil {
					return err
				}
				table.Row(c.ID, c.Name, string(c.Type), c.IconColor, strconv.Itoa(count))
			}
			return table.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "only these types (income, expense)")
	return cmd
}

func addCategoryCmd() *cobra.Command {
	var (
		id           string
		categoryType string
		icon         string
		color        string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			category := &model.Category{
				ID:        id,
				Name:      args[0],
				Type:      model.CategoryType(categoryType),
				IconName:  icon,
				IconColor: color,
			}
			if err := a.ledger.CreateCategory(ctx, category); err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s category %q (ID: %s)", category.Type, category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "category ID (generated when empty)")
	cmd.Flags().StringVar(&categoryType, "type", string(model.CategoryTypeExpense), "category type (income, expense)")
	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&color, "color", defaultIconColor, "icon background color (#RRGGBB)")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name         string
		categoryType string
		icon         string
		color        string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a category",
		Long: `Update a category's name, icon or color. The type can only change while no
transaction is filed under the category.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !anyChanged(cmd, "name", "type", "icon", "color") {
				return fmt.Errorf("must specify --name, --type, --icon or --color to update")
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			category, err := a.store.GetCategory(ctx, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				category.Name = name
			}
			if flags.Changed("type") {
				category.Type = model.CategoryType(categoryType)
			}
			if flags.Changed("icon") {
				category.IconName = icon
			}
			if flags.Changed("color") {
				category.IconColor = color
			}

			if err := a.ledger.UpdateCategory(ctx, category); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated category %q", category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&categoryType, "type", "", "new type (income, expense)")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon name")
	cmd.Flags().StringVar(&color, "color", "", "new icon background color (#RRGGBB)")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var (
		policy policyFlags
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long: `Delete a category. By default the delete is refused while transactions are
filed under it. --cascade deletes those transactions and --reassign-to moves
them to another category of the same type.`,
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
				count, err := a.store.CountCategoryReferences(ctx, id)
				if err != nil {
					return err
				}
				if count > 0 {
					ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(),
						fmt.Sprintf("Delete category %q and its %d transactions?", id, count))
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
				a.autoBackup(ctx, "delete-category")
			}
			if err := a.ledger.DeleteCategory(ctx, id, policy.policy()); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted category %q", id)))
			return nil
		},
	}

	policy.register(cmd, "category")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
