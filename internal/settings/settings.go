// Package settings gives typed access to user preferences kept in the
// preference store.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/observe"
	"github.com/Veraticus/tally/internal/service"
)

// Preference keys.
const (
	KeyCurrencySymbol     = "currency_symbol"
	KeyCurrencyPosition   = "currency_position"
	KeyTheme              = "theme"
	KeyReminderTime       = "reminder_time"
	KeyHideValues         = "hide_values"
	KeyOnboardingComplete = "onboarding_complete"
)

// ErrInvalidSetting marks a value that cannot be stored for its key.
var ErrInvalidSetting = fmt.Errorf("%w: invalid setting", common.ErrValidation)

// Settings reads and writes typed preferences.
type Settings struct {
	prefs service.PreferenceStore
}

// New wraps a preference store.
func New(prefs service.PreferenceStore) *Settings {
	return &Settings{prefs: prefs}
}

func (s *Settings) get(ctx context.Context, key, fallback string) (string, error) {
	value, ok, err := s.prefs.GetPreference(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	return value, nil
}

// Currency returns the display currency, DefaultCurrency when unset.
func (s *Settings) Currency(ctx context.Context) (model.Currency, error) {
	symbol, err := s.get(ctx, KeyCurrencySymbol, model.DefaultCurrency.Symbol)
	if err != nil {
		return model.Currency{}, err
	}
	position, err := s.get(ctx, KeyCurrencyPosition, string(model.DefaultCurrency.Position))
	if err != nil {
		return model.Currency{}, err
	}
	c := model.Currency{Symbol: symbol, Position: model.SymbolPosition(position)}
	if c.Position != model.SymbolSuffix {
		c.Position = model.SymbolPrefix
	}
	return c, nil
}

// SetCurrency stores the display currency.
func (s *Settings) SetCurrency(ctx context.Context, c model.Currency) error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("%w: currency symbol is required", ErrInvalidSetting)
	}
	if c.Position != model.SymbolPrefix && c.Position != model.SymbolSuffix {
		return fmt.Errorf("%w: symbol position %q", ErrInvalidSetting, c.Position)
	}
	if err := s.prefs.SetPreference(ctx, KeyCurrencySymbol, c.Symbol); err != nil {
		return err
	}
	return s.prefs.SetPreference(ctx, KeyCurrencyPosition, string(c.Position))
}

// Theme returns the colour scheme, ThemeSystem when unset or unknown.
func (s *Settings) Theme(ctx context.Context) (model.Theme, error) {
	value, err := s.get(ctx, KeyTheme, string(model.ThemeSystem))
	if err != nil {
		return "", err
	}
	return parseTheme(value), nil
}

// SetTheme stores the colour scheme.
func (s *Settings) SetTheme(ctx context.Context, theme model.Theme) error {
	if !theme.IsValid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidSetting, theme)
	}
	return s.prefs.SetPreference(ctx, KeyTheme, string(theme))
}

// WatchTheme emits the theme now and whenever it changes.
func (s *Settings) WatchTheme(ctx context.Context) *observe.Subscription[model.Theme] {
	return observe.Map(s.prefs.WatchPreference(ctx, KeyTheme), func(v string) (model.Theme, error) {
		return parseTheme(v), nil
	})
}

func parseTheme(v string) model.Theme {
	if t := model.Theme(v); t.IsValid() {
		return t
	}
	return model.ThemeSystem
}

// ReminderTime returns the daily reminder time.
func (s *Settings) ReminderTime(ctx context.Context) (model.ReminderTime, error) {
	value, err := s.get(ctx, KeyReminderTime, model.DefaultReminderTime.String())
	if err != nil {
		return model.ReminderTime{}, err
	}
	return model.ParseReminderTime(value), nil
}

// SetReminderTime stores the daily reminder time.
func (s *Settings) SetReminderTime(ctx context.Context, r model.ReminderTime) error {
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("%w: reminder time %02d:%02d", ErrInvalidSetting, r.Hour, r.Minute)
	}
	return s.prefs.SetPreference(ctx, KeyReminderTime, r.String())
}

// HideValues reports whether privacy mode is on.
func (s *Settings) HideValues(ctx context.Context) (bool, error) {
	return s.flag(ctx, KeyHideValues)
}

// SetHideValues turns privacy mode on or off.
func (s *Settings) SetHideValues(ctx context.Context, hide bool) error {
	return s.prefs.SetPreference(ctx, KeyHideValues, strconv.FormatBool(hide))
}

// WatchHideValues emits the privacy flag now and whenever it changes.
func (s *Settings) WatchHideValues(ctx context.Context) *observe.Subscription[bool] {
	return observe.Map(s.prefs.WatchPreference(ctx, KeyHideValues), func(v string) (bool, error) {
		b, _ := strconv.ParseBool(v)
		return b, nil
	})
}

// OnboardingComplete reports whether first-run setup has finished.
func (s *Settings) OnboardingComplete(ctx context.Context) (bool, error) {
	return s.flag(ctx, KeyOnboardingComplete)
}

// SetOnboardingComplete records first-run setup status.
func (s *Settings) SetOnboardingComplete(ctx context.Context, done bool) error {
	return s.prefs.SetPreference(ctx, KeyOnboardingComplete, strconv.FormatBool(done))
}

func (s *Settings) flag(ctx context.Context, key string) (bool, error) {
	value, err := s.get(ctx, key, "false")
	if err != nil {
		return false, err
	}
	b, _ := strconv.ParseBool(value)
	return b, nil
}
