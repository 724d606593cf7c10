package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"swapRouter/internal/storage"
	"swapRouter/internal/submit"
)

// Handoff writes fully formed transaction requests to a JSONL file for an
// external signer.
type Handoff struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func NewHandoff(path string) *Handoff {
	return &Handoff{path: path, now: time.Now}
}

type handoffTx struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Data    hexutil.Bytes  `json:"data"`
	Value   *hexutil.Big   `json:"value"`
	Gas     *hexutil.Big   `json:"gas"`
	ChainID hexutil.Uint64 `json:"chainId"`
}

type handoffRecord struct {
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
	Tx        handoffTx `json:"tx"`
}

// Write appends req and returns the keccak hash of its canonical encoding.
func (h *Handoff) Write(_ context.Context, req submit.TxRequest) (submit.TxHandle, error) {
	tx := handoffTx{
		From:    req.From,
		To:      req.To,
		Data:    req.Data,
		Value:   (*hexutil.Big)(orZero(req.Value)),
		Gas:     (*hexutil.Big)(orZero(req.Gas)),
		ChainID: hexutil.Uint64(req.ChainID),
	}
	encoded, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("encode handoff tx: %w", err)
	}
	handle := crypto.Keccak256Hash(encoded).Hex()

	h.mu.Lock()
	defer h.mu.Unlock()
	rec := handoffRecord{Handle: handle, CreatedAt: h.now().UTC(), Tx: tx}
	if err := storage.AppendJSONL(h.path, rec); err != nil {
		return "", err
	}
	return submit.TxHandle(handle), nil
}
