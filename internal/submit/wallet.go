package submit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccountState is an observation of the external account provider.
type AccountState struct {
	Connected bool
	Address   common.Address
	ChainID   uint64
}

// TxRequest is a fully formed transaction handed to the wallet.
type TxRequest struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Data    []byte         `json:"data"`
	Value   *big.Int       `json:"value"`
	Gas     *big.Int       `json:"gas"`
	ChainID uint64         `json:"chain_id"`
}

// TxHandle identifies a submitted transaction.
type TxHandle string

// Wallet is the external account provider. Signing and broadcasting happen
// behind it.
type Wallet interface {
	Account(ctx context.Context) (AccountState, error)
	SwitchNetwork(ctx context.Context, chainID uint64) error
	SendTransaction(ctx context.Context, req TxRequest) (TxHandle, error)
}
