package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimal places a Money value carries
const MinorUnitScale = 2

var (
	// ErrInvalidSplit is returned when money is split into fewer than one part
	ErrInvalidSplit = errors.New("money can only be split into one or more parts")
	// ErrAmountOverflow is returned when a decimal does not fit into minor units
	ErrAmountOverflow = errors.New("amount exceeds representable range")
)

// Money is a value object representing a monetary amount held in integer
// minor units (hundredths). It is immutable - all operations return new
// Money instances.
type Money struct {
	minor int64
}

// Zero returns a zero amount
func Zero() Money {
	return Money{}
}

// NewMoneyFromMinor creates Money from a count of minor units (cents)
func NewMoneyFromMinor(minor int64) Money {
	return Money{minor: minor}
}

// NewMoneyFromDecimal creates Money from a decimal, rounding half away from
// zero to two places
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(MinorUnitScale).Round(0)
	if !scaled.BigInt().IsInt64() {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: scaled.IntPart()}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d)
}

// MustParseMoney parses an amount and panics on failure. Intended for
// constants and tests.
func MustParseMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Minor returns the amount in minor units
func (m Money) Minor() int64 {
	return m.minor
}

// Decimal returns the amount as a decimal with two places
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -MinorUnitScale)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minor == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.minor > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.minor < 0
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{minor: m.minor + other.minor}
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) Money {
	return Money{minor: m.minor - other.minor}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{minor: -m.minor}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.minor < 0 {
		return m.Negate()
	}
	return m
}

// FloorZero returns the amount, or zero when the amount is negative
func (m Money) FloorZero() Money {
	if m.minor < 0 {
		return Money{}
	}
	return m
}

// Cmp compares two amounts and returns -1, 0 or +1
func (m Money) Cmp(other Money) int {
	switch {
	case m.minor < other.minor:
		return -1
	case m.minor > other.minor:
		return 1
	default:
		return 0
	}
}

// Equals returns true if both amounts are equal
func (m Money) Equals(other Money) bool {
	return m.minor == other.minor
}

// LessThan returns true if this Money is less than the other
func (m Money) LessThan(other Money) bool {
	return m.minor < other.minor
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) bool {
	return m.minor > other.minor
}

// SplitRounded divides the amount into n parts. Every part but the last is
// total/n rounded half away from zero to the minor unit; the last part
// absorbs the rounding drift so the parts always sum to the original amount.
func (m Money) SplitRounded(n int) ([]Money, error) {
	if n < 1 {
		return nil, ErrInvalidSplit
	}
	count := int64(n)
	part := divRoundHalfUp(m.minor, count)

	parts := make([]Money, n)
	for i := 0; i < n-1; i++ {
		parts[i] = Money{minor: part}
	}
	parts[n-1] = Money{minor: m.minor - part*(count-1)}
	return parts, nil
}

// DivideEvenly returns the truncated quotient of the amount divided into n
// parts, together with the remainder left over
func (m Money) DivideEvenly(n int) (per Money, remainder Money, err error) {
	if n < 1 {
		return Money{}, Money{}, ErrInvalidSplit
	}
	count := int64(n)
	return Money{minor: m.minor / count}, Money{minor: m.minor % count}, nil
}

func divRoundHalfUp(a, n int64) int64 {
	if a < 0 {
		return -divRoundHalfUp(-a, n)
	}
	q, r := a/n, a%n
	if 2*r >= n {
		q++
	}
	return q
}

// String returns the amount with two fixed decimal places
func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitScale)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements json.Unmarshaler. Both quoted strings and bare
// numbers are accepted.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var num json.Number
		if numErr := json.Unmarshal(data, &num); numErr != nil {
			return fmt.Errorf("invalid money value: %w", err)
		}
		raw = num.String()
	}
	parsed, err := NewMoneyFromString(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer for database storage
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Money) Scan(value any) error {
	if value == nil {
		m.minor = 0
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	case int64:
		m.minor = v * 100
		return nil
	case float64:
		strVal = decimal.NewFromFloat(v).String()
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	parsed, err := NewMoneyFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	*m = parsed
	return nil
}
