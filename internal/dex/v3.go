package dex

import (
	"fmt"
	"math/big"

	"swapRouter/internal/model"
)

// V3 prices are quoted inside the active range only: the snapshot carries the
// current sqrt price and in-range liquidity, not the tick map.

var (
	q96          = new(big.Int).Lsh(big.NewInt(1), 96)
	q192         = new(big.Int).Lsh(big.NewInt(1), 192)
	minSqrtRatio = big.NewInt(4295128739)
	maxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")
)

func mustBig(value string) *big.Int {
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer " + value)
	}
	return out
}

// V3AmountOut returns the output for amountIn. zeroForOne is true when token0
// is sold.
func V3AmountOut(amountIn, sqrtPriceX96, liquidity *big.Int, fee uint32, zeroForOne bool) (*big.Int, error) {
	if err := checkV3(sqrtPriceX96, liquidity, fee); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}

	amount := new(big.Int).Mul(amountIn, big.NewInt(int64(FeeDenominator-fee)))
	amount.Quo(amount, feeDen)
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}

	lq := new(big.Int).Mul(liquidity, q96)
	var next *big.Int
	if zeroForOne {
		// sqrtQ = L*Q96*sqrtP / (L*Q96 + amount*sqrtP), rounded up
		num := new(big.Int).Mul(lq, sqrtPriceX96)
		den := new(big.Int).Mul(amount, sqrtPriceX96)
		den.Add(den, lq)
		next = divCeil(num, den)
	} else {
		step := new(big.Int).Mul(amount, q96)
		step.Quo(step, liquidity)
		next = step.Add(step, sqrtPriceX96)
	}
	if err := checkSqrtBounds(next); err != nil {
		return nil, err
	}

	if zeroForOne {
		return amount1Delta(sqrtPriceX96, next, liquidity, false), nil
	}
	return amount0Delta(sqrtPriceX96, next, liquidity, false), nil
}

// V3AmountIn returns the gross input (fee included) needed for amountOut.
func V3AmountIn(amountOut, sqrtPriceX96, liquidity *big.Int, fee uint32, zeroForOne bool) (*big.Int, error) {
	if err := checkV3(sqrtPriceX96, liquidity, fee); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	lq := new(big.Int).Mul(liquidity, q96)
	var next *big.Int
	if zeroForOne {
		// token1 leaves the pool: price moves down by ceil(out*Q96/L)
		step := divCeil(new(big.Int).Mul(amountOut, q96), liquidity)
		if step.Cmp(sqrtPriceX96) >= 0 {
			return nil, fmt.Errorf("%w: output %s exceeds range", model.ErrInsufficientLiquidity, amountOut)
		}
		next = new(big.Int).Sub(sqrtPriceX96, step)
	} else {
		// token0 leaves the pool: sqrtQ = L*Q96*sqrtP / (L*Q96 - out*sqrtP), rounded up
		den := new(big.Int).Mul(amountOut, sqrtPriceX96)
		den.Sub(lq, den)
		if den.Sign() <= 0 {
			return nil, fmt.Errorf("%w: output %s exceeds range", model.ErrInsufficientLiquidity, amountOut)
		}
		next = divCeil(new(big.Int).Mul(lq, sqrtPriceX96), den)
	}
	if err := checkSqrtBounds(next); err != nil {
		return nil, err
	}

	var net *big.Int
	if zeroForOne {
		net = amount0Delta(next, sqrtPriceX96, liquidity, true)
	} else {
		net = amount1Delta(sqrtPriceX96, next, liquidity, true)
	}
	gross := new(big.Int).Mul(net, feeDen)
	return divCeil(gross, big.NewInt(int64(FeeDenominator-fee))), nil
}

// amount0Delta is L*Q96*(b-a)/(a*b) for the ordered pair of sqrt prices.
func amount0Delta(a, b, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(a, b)
	num := new(big.Int).Mul(liquidity, q96)
	num.Mul(num, new(big.Int).Sub(hi, lo))
	den := new(big.Int).Mul(lo, hi)
	if roundUp {
		return divCeil(num, den)
	}
	return num.Quo(num, den)
}

// amount1Delta is L*(b-a)/Q96 for the ordered pair of sqrt prices.
func amount1Delta(a, b, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(a, b)
	num := new(big.Int).Mul(liquidity, new(big.Int).Sub(hi, lo))
	if roundUp {
		return divCeil(num, q96)
	}
	return num.Quo(num, q96)
}

func orderSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func divCeil(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func checkV3(sqrtPriceX96, liquidity *big.Int, fee uint32) error {
	if err := checkFee(fee); err != nil {
		return err
	}
	if sqrtPriceX96 == nil || liquidity == nil || sqrtPriceX96.Sign() <= 0 || liquidity.Sign() <= 0 {
		return model.ErrInsufficientLiquidity
	}
	return nil
}

func checkSqrtBounds(value *big.Int) error {
	if value.Cmp(minSqrtRatio) < 0 || value.Cmp(maxSqrtRatio) > 0 {
		return fmt.Errorf("%w: price leaves the supported range", model.ErrInsufficientLiquidity)
	}
	return nil
}
