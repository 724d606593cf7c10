// Package gas estimates transaction gas with a safety margin.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
)

const bpsDenominator = 10_000

// DefaultMarginBps is the margin applied when none is configured.
const DefaultMarginBps = 1000

// Backend estimates the gas a call consumes.
type Backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// CalculateGasMargin returns estimate * (10000 + marginBps) / 10000, floored.
func CalculateGasMargin(estimate *big.Int, marginBps uint32) *big.Int {
	if estimate == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(estimate, big.NewInt(int64(bpsDenominator)+int64(marginBps)))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// Estimator runs a gas estimate for a router call and pads it.
type Estimator struct {
	backend Backend
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewEstimator(backend Backend, m *metrics.Metrics, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{backend: backend, metrics: m, logger: logger}
}

// WithMargin estimates call as sent from from and applies marginBps.
//
// A failed estimate means the call would revert now; it is reported as
// model.ErrCallWouldRevert and not retried. Cancellation passes through.
func (e *Estimator) WithMargin(ctx context.Context, from common.Address, call *model.SwapCall, marginBps uint32) (*big.Int, error) {
	if call == nil {
		return nil, fmt.Errorf("%w: nil call", model.ErrInvalidTradeState)
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    &call.To,
		Data:  call.Data,
		Value: call.Value,
	}
	estimate, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.metrics.GasOutcome("canceled")
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.metrics.GasOutcome("canceled")
			return nil, err
		}
		reason := RevertReason(err)
		e.metrics.GasOutcome("revert")
		e.logger.Warn("gas estimation failed",
			zap.String("to", call.To.Hex()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, &model.CallWouldRevertError{Reason: reason, Err: err}
	}

	padded := CalculateGasMargin(new(big.Int).SetUint64(estimate), marginBps)
	e.metrics.GasOutcome("ok")
	e.logger.Debug("gas estimated",
		zap.Uint64("estimate", estimate),
		zap.String("with_margin", padded.String()),
		zap.Uint32("margin_bps", marginBps),
	)
	return padded, nil
}

// RevertReason extracts a readable reason from an estimation error. It
// decodes Error(string) payloads carried as rpc error data and falls back to
// the error message.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw := revertData(dataErr.ErrorData()); len(raw) > 0 {
			if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
				return reason
			}
			return hexutil.Encode(raw)
		}
	}
	return err.Error()
}

func revertData(data interface{}) []byte {
	switch v := data.(type) {
	case string:
		raw, err := hexutil.Decode(v)
		if err != nil {
			return nil
		}
		return raw
	case []byte:
		return v
	default:
		return nil
	}
}
