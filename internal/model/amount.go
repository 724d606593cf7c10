package model

import (
	"fmt"
	"math/big"
	"strings"
)

// CurrencyAmount is a raw, non-negative amount in the currency's smallest unit.
type CurrencyAmount struct {
	Currency Currency
	raw      *big.Int
}

// NewAmount builds an amount from a raw magnitude.
func NewAmount(currency Currency, raw *big.Int) (CurrencyAmount, error) {
	if raw == nil {
		raw = new(big.Int)
	}
	if raw.Sign() < 0 {
		return CurrencyAmount{}, fmt.Errorf("negative amount %s for %s", raw, currency.Symbol)
	}
	return CurrencyAmount{Currency: currency, raw: new(big.Int).Set(raw)}, nil
}

// MustAmount is NewAmount for values known to be valid.
func MustAmount(currency Currency, raw *big.Int) CurrencyAmount {
	amount, err := NewAmount(currency, raw)
	if err != nil {
		panic(err)
	}
	return amount
}

// ZeroAmount returns a zero amount of currency.
func ZeroAmount(currency Currency) CurrencyAmount {
	return CurrencyAmount{Currency: currency, raw: new(big.Int)}
}

// ParseAmount converts a decimal string such as "4" or "0.25" into raw units.
func ParseAmount(currency Currency, value string) (CurrencyAmount, error) {
	value = strings.TrimSpace(value)
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return CurrencyAmount{}, fmt.Errorf("invalid amount: %q", value)
	}
	scaled := rat.Mul(rat, new(big.Rat).SetInt(pow10(currency.Decimals)))
	if !scaled.IsInt() {
		return CurrencyAmount{}, fmt.Errorf("amount %q exceeds %d decimals", value, currency.Decimals)
	}
	return NewAmount(currency, scaled.Num())
}

// Raw returns a copy of the raw magnitude.
func (a CurrencyAmount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a CurrencyAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a CurrencyAmount) Add(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return CurrencyAmount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.Currency, other.Currency)
	}
	return CurrencyAmount{Currency: a.Currency, raw: new(big.Int).Add(a.Raw(), other.Raw())}, nil
}

func (a CurrencyAmount) Sub(other CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equal(other.Currency) {
		return CurrencyAmount{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, a.Currency, other.Currency)
	}
	diff := new(big.Int).Sub(a.Raw(), other.Raw())
	if diff.Sign() < 0 {
		return CurrencyAmount{}, fmt.Errorf("negative result %s - %s", a.Exact(), other.Exact())
	}
	return CurrencyAmount{Currency: a.Currency, raw: diff}, nil
}

func (a CurrencyAmount) Cmp(other CurrencyAmount) (int, error) {
	if !a.Currency.Equal(other.Currency) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, other.Currency)
	}
	return a.Raw().Cmp(other.Raw()), nil
}

// Exact renders the amount with all decimals.
func (a CurrencyAmount) Exact() string {
	if a.Currency.Decimals == 0 {
		return a.Raw().String()
	}
	rat := new(big.Rat).SetFrac(a.Raw(), pow10(a.Currency.Decimals))
	return rat.FloatString(int(a.Currency.Decimals))
}

func (a CurrencyAmount) String() string {
	return a.Exact() + " " + a.Currency.Symbol
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
