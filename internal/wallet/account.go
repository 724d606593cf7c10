// Package wallet provides account providers for the submission coordinator.
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapRouter/internal/model"
	"swapRouter/internal/submit"
)

// ChainReader reports the network an endpoint serves.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Sink receives transactions ready for signing.
type Sink interface {
	Write(ctx context.Context, req submit.TxRequest) (submit.TxHandle, error)
}

var _ submit.Wallet = (*RPCAccount)(nil)

// RPCAccount is a fixed account whose network is whatever the RPC endpoint
// serves. It cannot move the endpoint, so a switch succeeds only when the
// endpoint already serves the wanted chain.
type RPCAccount struct {
	address common.Address
	chain   ChainReader
	sink    Sink
	logger  *zap.Logger
}

func NewRPCAccount(address common.Address, chain ChainReader, sink Sink, logger *zap.Logger) *RPCAccount {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCAccount{address: address, chain: chain, sink: sink, logger: logger}
}

func (a *RPCAccount) Account(ctx context.Context) (submit.AccountState, error) {
	if a.address == (common.Address{}) {
		return submit.AccountState{}, nil
	}
	id, err := a.chain.ChainID(ctx)
	if err != nil {
		return submit.AccountState{}, fmt.Errorf("read chain id: %w", err)
	}
	return submit.AccountState{Connected: true, Address: a.address, ChainID: id.Uint64()}, nil
}

func (a *RPCAccount) SwitchNetwork(ctx context.Context, chainID uint64) error {
	id, err := a.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: read chain id: %w", model.ErrNetworkSwitchRejected, err)
	}
	if id.Uint64() != chainID {
		return fmt.Errorf("%w: endpoint serves chain %d, want %d", model.ErrNetworkSwitchRejected, id.Uint64(), chainID)
	}
	return nil
}

func (a *RPCAccount) SendTransaction(ctx context.Context, req submit.TxRequest) (submit.TxHandle, error) {
	if a.sink == nil {
		return "", fmt.Errorf("no transaction sink configured")
	}
	handle, err := a.sink.Write(ctx, req)
	if err != nil {
		return "", err
	}
	a.logger.Info("transaction handed off", zap.String("handle", string(handle)))
	return handle, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
