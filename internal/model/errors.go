package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPair           = errors.New("invalid currency pair")
	ErrNoLiquidityData       = errors.New("no liquidity data")
	ErrNoRouteFound          = errors.New("no route found")
	ErrInvalidTradeState     = errors.New("invalid trade state")
	ErrCallWouldRevert       = errors.New("call would revert")
	ErrNotConnected          = errors.New("wallet not connected")
	ErrNetworkSwitchRejected = errors.New("network switch rejected")

	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrInvalidTolerance      = errors.New("invalid slippage tolerance")
	ErrInvalidSearchParams   = errors.New("invalid search parameters")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrSuperseded            = errors.New("superseded by a newer request")
)

// CallWouldRevertError carries the revert reason reported by gas estimation.
type CallWouldRevertError struct {
	Reason string
	Err    error
}

func (e *CallWouldRevertError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrCallWouldRevert, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrCallWouldRevert, e.Err)
	}
	return ErrCallWouldRevert.Error()
}

func (e *CallWouldRevertError) Is(target error) bool {
	return target == ErrCallWouldRevert
}

func (e *CallWouldRevertError) Unwrap() error {
	return e.Err
}
