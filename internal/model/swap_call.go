package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapCall is a single-use executable router call.
type SwapCall struct {
	To    common.Address
	Data  []byte
	Value *big.Int

	// Bound is the minimum output (exact input) or maximum input (exact output).
	Bound CurrencyAmount
}
