package settings

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Veraticus/tally/internal/model"
)

// HiddenAmount replaces amounts while privacy mode is on.
const HiddenAmount = "****"

var printer = message.NewPrinter(language.English)

// FormatAmount renders amount with grouping, two decimals and the currency
// symbol on the configured side. Negative amounts lead with a minus sign.
func FormatAmount(amount decimal.Decimal, c model.Currency, hide bool) string {
	if hide {
		return HiddenAmount
	}

	// Only the whole part goes through the printer, as an integer, so no
	// digit is ever rounded through a float.
	whole, cents, _ := strings.Cut(amount.Abs().StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = printer.Sprint(number.Decimal(n))
	}
	digits := whole + "." + cents

	sign := ""
	if amount.Round(2).IsNegative() {
		sign = "-"
	}

	if c.Position == model.SymbolSuffix {
		return sign + digits + c.Symbol
	}
	return sign + c.Symbol + digits
}
