// Package render formats amounts for notification copy.
package render

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter prints integer cents with the currency symbol for Lang.
type MoneyFormatter struct {
	Lang language.Tag
}

func NewMoneyFormatter(lang string) MoneyFormatter {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return MoneyFormatter{Lang: tag}
}

func (f MoneyFormatter) Format(amountCents int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	printer := message.NewPrinter(f.Lang)
	return printer.Sprint(currency.Symbol(unit.Amount(float64(amountCents) / 100)))
}
