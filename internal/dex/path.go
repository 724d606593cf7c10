package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EncodeV3Path packs token(20) | fee(3) | token(20) ... as the V3 router
// expects. Exact-output swaps take the path in reverse order.
func EncodeV3Path(tokens []common.Address, fees []uint32, reverse bool) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path needs n tokens and n-1 fees, got %d/%d", len(tokens), len(fees))
	}
	for _, fee := range fees {
		if fee >= 1<<24 {
			return nil, fmt.Errorf("fee %d does not fit uint24", fee)
		}
	}

	ordTokens := tokens
	ordFees := fees
	if reverse {
		ordTokens = make([]common.Address, len(tokens))
		for i, token := range tokens {
			ordTokens[len(tokens)-1-i] = token
		}
		ordFees = make([]uint32, len(fees))
		for i, fee := range fees {
			ordFees[len(fees)-1-i] = fee
		}
	}

	out := make([]byte, 0, len(ordTokens)*common.AddressLength+len(ordFees)*3)
	for i, token := range ordTokens {
		out = append(out, token.Bytes()...)
		if i < len(ordFees) {
			fee := ordFees[i]
			out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
		}
	}
	return out, nil
}
