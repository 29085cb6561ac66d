package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/settings"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change preferences",
	}

	cmd.AddCommand(showSettingsCmd())
	cmd.AddCommand(setSettingCmd())

	return cmd
}

func showSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			currency, err := a.settings.Currency(ctx)
			if err != nil {
				return err
			}
			theme, err := a.settings.Theme(ctx)
			if err != nil {
				return err
			}
			reminder, err := a.settings.ReminderTime(ctx)
			if err != nil {
				return err
			}
			hide, err := a.settings.HideValues(ctx)
			if err != nil {
				return err
			}
			onboarded, err := a.settings.OnboardingComplete(ctx)
			if err != nil {
				return err
			}

			table := cli.NewTable(cmd.OutOrStdout(), "Setting", "Value")
			table.Row("currency", currency.Symbol)
			table.Row("currency-position", string(currency.Position))
			table.Row("theme", string(theme))
			table.Row("reminder", formatReminder(reminder))
			table.Row("hide-values", strconv.FormatBool(hide))
			table.Row("onboarding-complete", strconv.FormatBool(onboarded))
			table.Row("example", settings.FormatAmount(decimal.RequireFromString("-1234.50"), currency, hide))
			return table.Flush()
		},
	}
}

func setSettingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a preference",
		Long: `Change a preference. Keys:
  currency             currency symbol, e.g. $ or €
  currency-position    prefix or suffix
  theme                system, light or dark
  reminder             daily reminder as HH:MM, add "12h" for a 12-hour clock
  hide-values          true hides amounts in listings and reports
  onboarding-complete  true once first-run setup is done`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key, value := args[0], args[1]

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			s := a.settings
			switch key {
			case "currency", "currency-position":
				var c model.Currency
				if c, err = s.Currency(ctx); err != nil {
					return err
				}
				if key == "currency" {
					c.Symbol = value
				} else {
					c.Position = model.SymbolPosition(value)
				}
				err = s.SetCurrency(ctx, c)
			case "theme":
				err = s.SetTheme(ctx, model.Theme(value))
			case "reminder":
				var r model.ReminderTime
				if r, err = parseReminder(value); err == nil {
					err = s.SetReminderTime(ctx, r)
				}
			case "hide-values", "onboarding-complete":
				var b bool
				if b, err = strconv.ParseBool(value); err != nil {
					return fmt.Errorf("%w: %s must be true or false", settings.ErrInvalidSetting, key)
				}
				if key == "hide-values" {
					err = s.SetHideValues(ctx, b)
				} else {
					err = s.SetOnboardingComplete(ctx, b)
				}
			default:
				return fmt.Errorf("%w: unknown setting %q", common.ErrValidation, key)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Set %s to %s", key, value)))
			return nil
		},
	}
}

// parseReminder reads "HH:MM" with an optional trailing "12h" or "24h".
func parseReminder(value string) (model.ReminderTime, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return model.ReminderTime{}, fmt.Errorf("%w: reminder is empty", settings.ErrInvalidSetting)
	}

	var r model.ReminderTime
	if _, err := fmt.Sscanf(fields[0], "%d:%d", &r.Hour, &r.Minute); err != nil {
		return model.ReminderTime{}, fmt.Errorf("%w: reminder %q must look like HH:MM", settings.ErrInvalidSetting, value)
	}
	r.Is24Hour = true
	if len(fields) > 1 && fields[1] == "12h" {
		r.Is24Hour = false
	}
	return r, nil
}

func formatReminder(r model.ReminderTime) string {
	if r.Is24Hour {
		return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
	}
	hour := r.Hour % 12
	if hour == 0 {
		hour = 12
	}
	suffix := "AM"
	if r.Hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, r.Minute, suffix)
}
