// Package format renders dates and money for the dashboard. Formatting never
// fails: bad input is logged and replaced by an empty or plain value.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultCurrency = "SAR"
	DateLayout      = "2006/01/02 15:04"
)

// Riyadh is the storefront's business time zone (UTC+3, no DST).
var Riyadh = time.FixedZone("AST", 3*60*60)

var inputLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type Formatter struct {
	logger   *zap.Logger
	printer  *message.Printer
	currency string
	loc      *time.Location
}

func New(logger *zap.Logger, tag language.Tag, currencyCode string) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	return &Formatter{
		logger:   logger.Named("format"),
		printer:  message.NewPrinter(tag),
		currency: currencyCode,
		loc:      Riyadh,
	}
}

// Date formats t in business time. A nil or zero time renders as "".
func (f *Formatter) Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format(DateLayout)
}

// DateString parses raw in one of the accepted layouts and formats it.
func (f *Formatter) DateString(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return f.Date(&t)
		}
	}
	f.logger.Warn("failed to format date", zap.String("input", raw))
	return ""
}

// Currency formats amount in the formatter's currency, for example "SAR 1250.00".
// An unknown currency code falls back to "<amount> <code>".
func (f *Formatter) Currency(amount decimal.Decimal) string {
	return f.CurrencyIn(amount, f.currency)
}

func (f *Formatter) CurrencyIn(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		f.logger.Warn("failed to format currency", zap.String("currency", code), zap.Error(err))
		return amount.String() + " " + code
	}
	return f.printer.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}
