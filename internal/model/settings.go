package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SymbolPosition controls which side of the amount the currency symbol goes.
type SymbolPosition string

// Symbol positions.
const (
	SymbolPrefix SymbolPosition = "prefix"
	SymbolSuffix SymbolPosition = "suffix"
)

// Currency is the user's display currency.
type Currency struct {
	Symbol   string
	Position SymbolPosition
}

// DefaultCurrency is used until the user picks one.
var DefaultCurrency = Currency{Symbol: "$", Position: SymbolPrefix}

// Theme is the preferred colour scheme.
type Theme string

// Themes.
const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// IsValid reports whether the theme is known.
func (t Theme) IsValid() bool {
	return t == ThemeSystem || t == ThemeLight || t == ThemeDark
}

// ReminderTime is the daily time the user wants to be nudged.
type ReminderTime struct {
	Hour     int
	Minute   int
	Is24Hour bool
}

// DefaultReminderTime is 10:00 on a 12-hour clock.
var DefaultReminderTime = ReminderTime{Hour: 10, Minute: 0, Is24Hour: false}

// String encodes the reminder as "hour:minute:is24Hour".
func (r ReminderTime) String() string {
	return fmt.Sprintf("%d:%d:%t", r.Hour, r.Minute, r.Is24Hour)
}

// ParseReminderTime decodes the "hour:minute:is24Hour" form. Unparseable
// fields fall back to the matching field of DefaultReminderTime.
func ParseReminderTime(s string) ReminderTime {
	r := DefaultReminderTime
	parts := strings.Split(s, ":")
	if len(parts) > 0 {
		if h, err := strconv.Atoi(parts[0]); err == nil && h >= 0 && h < 24 {
			r.Hour = h
		}
	}
	if len(parts) > 1 {
		if m, err := strconv.Atoi(parts[1]); err == nil && m >= 0 && m < 60 {
			r.Minute = m
		}
	}
	if len(parts) > 2 {
		if b, err := strconv.ParseBool(parts[2]); err == nil {
			r.Is24Hour = b
		}
	}
	return r
}
