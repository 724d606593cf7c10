package model

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testUSDT = NewToken(42793, common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A"), 6, "USDT")
	testWXTZ = NewToken(42793, common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb"), 18, "WXTZ")
)

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(testUSDT, "4")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if amount.Raw().Cmp(big.NewInt(4_000_000)) != 0 {
		t.Fatalf("raw mismatch: %s", amount.Raw())
	}

	amount, err = ParseAmount(testUSDT, "0.25")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if amount.Raw().Cmp(big.NewInt(250_000)) != 0 {
		t.Fatalf("raw mismatch: %s", amount.Raw())
	}
	if amount.Exact() != "0.250000" {
		t.Fatalf("exact mismatch: %s", amount.Exact())
	}
}

func TestParseAmountRejectsExtraPrecision(t *testing.T) {
	if _, err := ParseAmount(testUSDT, "0.0000001"); err == nil {
		t.Fatalf("expected error for 7 decimals on a 6 decimals token")
	}
	if _, err := ParseAmount(testUSDT, "-1"); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := ParseAmount(testUSDT, "abc"); err == nil {
		t.Fatalf("expected error for garbage")
	}
}

func TestAmountArithmeticRequiresSameCurrency(t *testing.T) {
	a := MustAmount(testUSDT, big.NewInt(10))
	b := MustAmount(testWXTZ, big.NewInt(10))

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
	if _, err := a.Cmp(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}

	sum, err := a.Add(MustAmount(testUSDT, big.NewInt(5)))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sum.Raw().Int64() != 15 {
		t.Fatalf("sum mismatch: %s", sum.Raw())
	}
	if _, err := a.Sub(MustAmount(testUSDT, big.NewInt(11))); err == nil {
		t.Fatalf("expected error for negative result")
	}
}

func TestNativeCurrencyTokenAddress(t *testing.T) {
	xtz := NewNative(42793, 18, "XTZ", testWXTZ.Address)
	if xtz.TokenAddress() != testWXTZ.Address {
		t.Fatalf("native should trade as its wrapper")
	}
	if xtz.Equal(testWXTZ) {
		t.Fatalf("native and wrapped are different currencies")
	}
	if !xtz.SameToken(testWXTZ) {
		t.Fatalf("native and wrapped share a pool token")
	}
}
