package dex

import (
	"fmt"
	"math/big"

	"swapRouter/internal/model"
)

// FeeDenominator is the scale of pool fees (parts per million).
const FeeDenominator = 1_000_000

var feeDen = big.NewInt(FeeDenominator)

// V2AmountOut returns the constant-product output for amountIn.
func V2AmountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint32) (*big.Int, error) {
	if err := checkFee(fee); err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, model.ErrInsufficientLiquidity
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(FeeDenominator-fee)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDen)
	denominator.Add(denominator, inWithFee)
	return numerator.Quo(numerator, denominator), nil
}

// V2AmountIn returns the constant-product input needed for amountOut.
func V2AmountIn(amountOut, reserveIn, reserveOut *big.Int, fee uint32) (*big.Int, error) {
	if err := checkFee(fee); err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, model.ErrInsufficientLiquidity
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int), nil
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("%w: want %s of reserve %s", model.ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, feeDen)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(int64(FeeDenominator-fee)))
	in := numerator.Quo(numerator, denominator)
	return in.Add(in, big.NewInt(1)), nil
}

func checkFee(fee uint32) error {
	if fee >= FeeDenominator {
		return fmt.Errorf("fee %d out of range", fee)
	}
	return nil
}
