/*
Package coin provides the core domain types for the chore-economy ledger.

PURPOSE:
  One virtual currency ("coins") per user. This package defines the
  money type, the record shapes stored in the item collection, the key
  scheme that addresses them, the activity completion state machine,
  and the error taxonomy shared by every other package.

KEY CONCEPTS IN THIS FILE (amount.go):
  - Amount: a coin quantity with fixed 2-decimal precision

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64, for balances
  2. Compatibility: amounts unmarshal from both JSON numbers (legacy
     rows) and strings
  3. No floor: balances may go negative; the ledger never blocks that

SEE ALSO:
  - records.go: stored record types using Amount
  - keys.go: item-collection addressing
  - errors.go: shared error taxonomy
*/
package coin

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Coin quantity, fixed 2-decimal precision
// =============================================================================

// Amount is a signed coin quantity. The zero value is zero coins.
type Amount struct {
	value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{value: decimal.NewFromFloat(value).Round(2)}
}

func NewAmountFromInt(value int) Amount {
	return Amount{value: decimal.NewFromInt(int64(value))}
}

// ParseAmount parses a decimal string, rounding to 2 places.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{value: d.Round(2)}, nil
}

func (a Amount) Add(b Amount) Amount    { return Amount{value: a.value.Add(b.value).Round(2)} }
func (a Amount) Sub(b Amount) Amount    { return Amount{value: a.value.Sub(b.value).Round(2)} }
func (a Amount) Neg() Amount            { return Amount{value: a.value.Neg()} }
func (a Amount) Abs() Amount            { return Amount{value: a.value.Abs()} }
func (a Amount) MulInt(n int) Amount    { return Amount{value: a.value.Mul(decimal.NewFromInt(int64(n))).Round(2)} }
func (a Amount) IsNegative() bool       { return a.value.IsNegative() }
func (a Amount) IsPositive() bool       { return a.value.IsPositive() }
func (a Amount) IsZero() bool           { return a.value.IsZero() }
func (a Amount) Equal(b Amount) bool    { return a.value.Equal(b.value) }
func (a Amount) LessThan(b Amount) bool { return a.value.LessThan(b.value) }

// Float64 returns the amount as a float for display-layer math only.
func (a Amount) Float64() float64 {
	f, _ := a.value.Float64()
	return f
}

// String renders with exactly two decimal places ("12.50", "-0.75").
func (a Amount) String() string {
	return a.value.StringFixed(2)
}

// Display renders a user-facing dollar string ("+$2.00", "-$0.50").
func (a Amount) Display() string {
	sign := "+"
	if a.IsNegative() {
		sign = "-"
	}
	return sign + "$" + a.value.Abs().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number, matching the legacy
// row format so old and new rows stay interchangeable.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.value.StringFixed(2)), nil
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		a.value = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.value = d.Round(2)
	return nil
}
