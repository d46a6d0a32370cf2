package types

import "github.com/shopspring/decimal"

// FormatCents renders an amount stored in paise as a rupee string,
// e.g. 205000 becomes "₹2050.00".
func FormatCents(cents int64) string {
	return "₹" + decimal.New(cents, -2).StringFixed(2)
}
