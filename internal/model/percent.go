package model

import (
	"fmt"
	"math/big"
)

// BipsBase is the denominator for basis-point fractions.
const BipsBase = 10_000

// Percent is an exact fraction Num/Den.
type Percent struct {
	Num *big.Int
	Den *big.Int
}

// NewPercent builds num/den.
func NewPercent(num, den int64) Percent {
	return Percent{Num: big.NewInt(num), Den: big.NewInt(den)}
}

// NewBips builds bps/10000.
func NewBips(bps uint32) Percent {
	return NewPercent(int64(bps), BipsBase)
}

// ValidateTolerance enforces 0 <= t < 1.
func (p Percent) ValidateTolerance() error {
	if p.Num == nil || p.Den == nil || p.Den.Sign() <= 0 {
		return fmt.Errorf("%w: undefined fraction", ErrInvalidTolerance)
	}
	if p.Num.Sign() < 0 || p.Num.Cmp(p.Den) >= 0 {
		return fmt.Errorf("%w: %s/%s", ErrInvalidTolerance, p.Num, p.Den)
	}
	return nil
}

// ApplyDown returns floor(amount * (1 - p)).
func (p Percent) ApplyDown(amount *big.Int) *big.Int {
	factor := new(big.Int).Sub(p.Den, p.Num)
	out := new(big.Int).Mul(amount, factor)
	return out.Quo(out, p.Den)
}

// ApplyUp returns floor(amount * (1 + p)).
func (p Percent) ApplyUp(amount *big.Int) *big.Int {
	factor := new(big.Int).Add(p.Den, p.Num)
	out := new(big.Int).Mul(amount, factor)
	return out.Quo(out, p.Den)
}

func (p Percent) String() string {
	if p.Num == nil || p.Den == nil || p.Den.Sign() == 0 {
		return "0%"
	}
	rat := new(big.Rat).SetFrac(new(big.Int).Mul(p.Num, big.NewInt(100)), p.Den)
	return rat.FloatString(2) + "%"
}
