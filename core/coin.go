package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount is the largest representable amount (2^128 - 1).
var maxAmount = decimal.NewFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)), 0)

// Amount is a non-negative integer quantity of a single denomination.
// The zero value is a valid zero amount.
type Amount struct {
	d decimal.Decimal
}

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) Amount {
	return Amount{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

// ParseAmount parses a base-10 integer string. Fractions, negative values and
// values above 2^128-1 are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("amount %q is not an integer", s)
	}
	if d.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount %q is negative", s)
	}
	if d.GreaterThan(maxAmount) {
		return Amount{}, newError(CodeOverflow, fmt.Sprintf("amount %s exceeds maximum", s))
	}
	return Amount{d: d}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b, failing instead of exceeding 2^128-1.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a.d.Add(b.d)
	if sum.GreaterThan(maxAmount) {
		return Amount{}, newError(CodeOverflow, fmt.Sprintf("overflow adding %s and %s", a, b))
	}
	return Amount{d: sum}, nil
}

// Sub returns a-b, failing instead of going below zero.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a.d.Sub(b.d)
	if diff.Sign() < 0 {
		return Amount{}, newError(CodeOverflow, fmt.Sprintf("underflow subtracting %s from %s", b, a))
	}
	return Amount{d: diff}, nil
}

// Cmp returns -1, 0 or +1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal lets go-cmp compare amounts without reaching into decimal internals.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a quoted integer string so values above
// 2^53 survive JSON consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAmount(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Coin is an amount tagged with its denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount Amount `json:"amount"`
}

// NewCoin builds a Coin from a uint64 amount.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: NewAmount(amount)}
}

// ParseCoin parses "<amount><denom>", e.g. "10atom".
func ParseCoin(s string) (Coin, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Coin{}, fmt.Errorf("coin %q has no amount", s)
	}
	denom := strings.TrimSpace(s[i:])
	if denom == "" {
		return Coin{}, fmt.Errorf("coin %q has no denom", s)
	}
	amount, err := ParseAmount(s[:i])
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: denom, Amount: amount}, nil
}

// ZeroCoin returns a zero amount of denom.
func ZeroCoin(denom string) Coin {
	return Coin{Denom: denom}
}

// Equal reports whether both coins have the same denom and amount.
func (c Coin) Equal(o Coin) bool {
	return c.Denom == o.Denom && c.Amount.Cmp(o.Amount) == 0
}

func (c Coin) IsZero() bool {
	return c.Amount.IsZero()
}

func (c Coin) String() string {
	return c.Amount.String() + c.Denom
}

// Add adds two coins of the same denomination.
func Add(a, b Coin) (Coin, error) {
	if a.Denom != b.Denom {
		return Coin{}, newError(CodeDenomMismatch, fmt.Sprintf("cannot add %s to %s", b.Denom, a.Denom))
	}
	sum, err := a.Amount.Add(b.Amount)
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: a.Denom, Amount: sum}, nil
}

// Sub subtracts b from a; both must share a denomination.
func Sub(a, b Coin) (Coin, error) {
	if a.Denom != b.Denom {
		return Coin{}, newError(CodeDenomMismatch, fmt.Sprintf("cannot subtract %s from %s", b.Denom, a.Denom))
	}
	diff, err := a.Amount.Sub(b.Amount)
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: a.Denom, Amount: diff}, nil
}

// Sum folds coins with Add starting from zero. Every coin must be in denom.
func Sum(coins []Coin, denom string) (Coin, error) {
	total := ZeroCoin(denom)
	for _, c := range coins {
		if c.Denom != denom {
			return Coin{}, newError(CodeUnsupportedDenom, fmt.Sprintf("unsupported denom %q, expected %q", c.Denom, denom))
		}
		var err error
		total, err = Add(total, c)
		if err != nil {
			return Coin{}, err
		}
	}
	return total, nil
}
