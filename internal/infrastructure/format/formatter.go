// Package format renders monetary amounts for people, following the locale
// and currency configured for the engine.
package format

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/erp/obligations/internal/infrastructure/config"
)

// LocaleFormatter formats Money in a fixed locale and currency.
// It is safe for concurrent use.
type LocaleFormatter struct {
	tag     language.Tag
	unit    currency.Unit
	printer *message.Printer
}

// NewLocaleFormatter builds a formatter from a BCP 47 locale such as
// "pt-BR" and an ISO 4217 code such as "BRL".
func NewLocaleFormatter(locale, code string) (*LocaleFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return &LocaleFormatter{
		tag:     tag,
		unit:    unit,
		printer: message.NewPrinter(tag),
	}, nil
}

// NewFromConfig builds a formatter from the engine section of the config.
func NewFromConfig(cfg config.EngineConfig) (*LocaleFormatter, error) {
	return NewLocaleFormatter(cfg.Locale, cfg.Currency)
}

// Format renders the amount with the currency symbol, e.g. "R$ 1.234,50".
func (f *LocaleFormatter) Format(m valueobject.Money) string {
	amount := f.unit.Amount(m.Decimal().InexactFloat64())
	return f.printer.Sprint(currency.Symbol(amount))
}

// FormatCode renders the amount with the ISO code, e.g. "BRL 1.234,50".
func (f *LocaleFormatter) FormatCode(m valueobject.Money) string {
	amount := f.unit.Amount(m.Decimal().InexactFloat64())
	return f.printer.Sprint(currency.ISO(amount))
}

// Locale returns the language tag in use.
func (f *LocaleFormatter) Locale() language.Tag {
	return f.tag
}

// Currency returns the ISO 4217 code in use.
func (f *LocaleFormatter) Currency() string {
	return f.unit.String()
}
