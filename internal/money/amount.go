// Package money implements the fixed-point amount used by the ledger.
//
// Amounts carry exactly two fractional digits and never pass through binary
// floating point: parsing, summation and storage all go through decimal text.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/veresiye/defter/internal/platform/httpx"
)

// Scale is the number of fractional digits an Amount carries.
const Scale = 2

var (
	// ErrInvalidAmount is returned for unparsable input.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", httpx.ErrValidation)
	// ErrPrecision is returned when input has more than two fractional digits.
	ErrPrecision = fmt.Errorf("%w: amount must have at most 2 decimal places", httpx.ErrValidation)
	// ErrNotPositive is returned by ParsePositive for values below 0.01.
	ErrNotPositive = fmt.Errorf("%w: amount must be at least 0.01", httpx.ErrValidation)
)

var minPositive = decimal.New(1, -Scale)

// Amount is a currency-agnostic fixed-point value. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero returns 0.00.
func Zero() Amount {
	return Amount{}
}

// FromMinor builds an Amount from minor units (kuruş).
func FromMinor(minor int64) Amount {
	return Amount{d: decimal.New(minor, -Scale)}
}

// MustParse is Parse that panics; intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse reads a decimal string such as "100", "100.5" or "-3.25".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return fromDecimal(d)
}

// ParsePositive parses s and rejects anything below 0.01.
func ParsePositive(s string) (Amount, error) {
	a, err := Parse(s)
	if err != nil {
		return Amount{}, err
	}
	if !a.IsPositive() {
		return Amount{}, ErrNotPositive
	}
	return a, nil
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if d.Exponent() < -Scale && !d.Equal(d.Truncate(Scale)) {
		return Amount{}, ErrPrecision
	}
	return Amount{d: d}, nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b hold the same value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// IsZero reports whether a is 0.00.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// IsPositive reports whether a >= 0.01.
func (a Amount) IsPositive() bool {
	return a.d.GreaterThanOrEqual(minPositive)
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// Minor returns the value in minor units.
func (a Amount) Minor() int64 {
	return a.d.Shift(Scale).IntPart()
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// Sum adds all amounts, returning 0.00 for an empty list.
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON encodes the amount as a decimal string, e.g. "100.00".
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON string or a bare JSON number. Numbers are read
// from their literal text, never through float64.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrInvalidAmount
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scan implements sql.Scanner. pgx hands NUMERIC columns over as text.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero()
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = Amount{d: decimal.NewFromInt(v)}
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}

// Value implements driver.Valuer, sending the amount as decimal text.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}
