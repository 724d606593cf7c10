package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapRouter/internal/model"
)

// Gas units charged by the search for a swap. Per-hop costs follow the
// relative weight of the pool families on the smart router.
const (
	GasSwapBase uint64 = 80_000
	GasPerV2Hop uint64 = 60_000
	GasPerV3Hop uint64 = 100_000
)

// HopGas returns the gas charged for one hop through pool.
func HopGas(pool model.Pool) uint64 {
	if pool.Protocol == model.ProtocolV3 {
		return GasPerV3Hop
	}
	return GasPerV2Hop
}

// AmountOut prices selling amountIn of tokenIn into pool.
func AmountOut(pool model.Pool, tokenIn common.Address, amountIn *big.Int) (*big.Int, error) {
	zeroForOne, err := direction(pool, tokenIn)
	if err != nil {
		return nil, err
	}
	switch pool.Protocol {
	case model.ProtocolV2:
		if zeroForOne {
			return V2AmountOut(amountIn, pool.Reserve0, pool.Reserve1, pool.Fee)
		}
		return V2AmountOut(amountIn, pool.Reserve1, pool.Reserve0, pool.Fee)
	case model.ProtocolV3:
		return V3AmountOut(amountIn, pool.SqrtPriceX96, pool.Liquidity, pool.Fee, zeroForOne)
	default:
		return nil, fmt.Errorf("unsupported protocol %s", pool.Protocol)
	}
}

// AmountIn prices buying amountOut of the token opposite tokenIn from pool.
func AmountIn(pool model.Pool, tokenIn common.Address, amountOut *big.Int) (*big.Int, error) {
	zeroForOne, err := direction(pool, tokenIn)
	if err != nil {
		return nil, err
	}
	switch pool.Protocol {
	case model.ProtocolV2:
		if zeroForOne {
			return V2AmountIn(amountOut, pool.Reserve0, pool.Reserve1, pool.Fee)
		}
		return V2AmountIn(amountOut, pool.Reserve1, pool.Reserve0, pool.Fee)
	case model.ProtocolV3:
		return V3AmountIn(amountOut, pool.SqrtPriceX96, pool.Liquidity, pool.Fee, zeroForOne)
	default:
		return nil, fmt.Errorf("unsupported protocol %s", pool.Protocol)
	}
}

// SpotQuote converts amount of base into the pool's other token at mid price,
// without fee or price impact.
func SpotQuote(pool model.Pool, base common.Address, amount *big.Int) (*big.Int, error) {
	zeroForOne, err := direction(pool, base)
	if err != nil {
		return nil, err
	}
	if !pool.HasLiquidity() {
		return nil, model.ErrInsufficientLiquidity
	}
	out := new(big.Int)
	switch pool.Protocol {
	case model.ProtocolV2:
		if zeroForOne {
			out.Mul(amount, pool.Reserve1)
			return out.Quo(out, pool.Reserve0), nil
		}
		out.Mul(amount, pool.Reserve0)
		return out.Quo(out, pool.Reserve1), nil
	case model.ProtocolV3:
		priceX192 := new(big.Int).Mul(pool.SqrtPriceX96, pool.SqrtPriceX96)
		if zeroForOne {
			out.Mul(amount, priceX192)
			return out.Quo(out, q192), nil
		}
		out.Mul(amount, q192)
		return out.Quo(out, priceX192), nil
	default:
		return nil, fmt.Errorf("unsupported protocol %s", pool.Protocol)
	}
}

func direction(pool model.Pool, tokenIn common.Address) (bool, error) {
	switch tokenIn {
	case pool.Token0.TokenAddress():
		return true, nil
	case pool.Token1.TokenAddress():
		return false, nil
	default:
		return false, fmt.Errorf("token %s not in pool %s", tokenIn.Hex(), pool.Address.Hex())
	}
}
