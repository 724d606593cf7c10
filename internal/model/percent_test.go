package model

import (
	"errors"
	"math/big"
	"testing"
)

func TestValidateTolerance(t *testing.T) {
	cases := []struct {
		name    string
		percent Percent
		ok      bool
	}{
		{"zero", NewBips(0), true},
		{"default", NewBips(25), true},
		{"almost one", NewBips(9_999), true},
		{"one", NewBips(10_000), false},
		{"negative", NewPercent(-1, 100), false},
		{"zero denominator", NewPercent(1, 0), false},
	}
	for _, tc := range cases {
		err := tc.percent.ValidateTolerance()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTolerance) {
			t.Fatalf("%s: expected ErrInvalidTolerance, got %v", tc.name, err)
		}
	}
}

func TestApplyTolerance(t *testing.T) {
	p := NewBips(25)
	amount := big.NewInt(1_000_000)

	if got := p.ApplyDown(amount); got.Int64() != 997_500 {
		t.Fatalf("min out mismatch: %s", got)
	}
	if got := p.ApplyUp(amount); got.Int64() != 1_002_500 {
		t.Fatalf("max in mismatch: %s", got)
	}
	if p.String() != "0.25%" {
		t.Fatalf("string mismatch: %s", p.String())
	}
}
