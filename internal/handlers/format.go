package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatMoney renders 1234567.5 as "$1,234,567.50".
func formatMoney(v float64) string {
	return printer.Sprintf("$%.2f", v)
}
