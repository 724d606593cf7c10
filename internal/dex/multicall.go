package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMulticall3 is the canonical Multicall3 deployment address.
var DefaultMulticall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// Call is one read in a Multicall3 batch.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Result is the outcome of one Call. Failed calls do not fail the batch.
type Result struct {
	Success    bool
	ReturnData []byte
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3 struct {
	Success    bool   `json:"success"`
	ReturnData []byte `json:"returnData"`
}

// Span is a half-open index window [From, To) over a call list.
type Span struct {
	From int
	To   int
}

// SplitCalls splits n calls into windows of at most batchSize.
func SplitCalls(n, batchSize int) ([]Span, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("call count must be >= 0")
	}

	spans := make([]Span, 0, n/batchSize+1)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		spans = append(spans, Span{From: start, To: end})
	}
	return spans, nil
}

// Multicaller batches view calls through Multicall3 aggregate3.
type Multicaller struct {
	caller    ethereum.ContractCaller
	address   common.Address
	batchSize int
}

func NewMulticaller(caller ethereum.ContractCaller, address common.Address, batchSize int) *Multicaller {
	if address == (common.Address{}) {
		address = DefaultMulticall3
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Multicaller{caller: caller, address: address, batchSize: batchSize}
}

// Aggregate runs calls in batches and returns one result per call, in order.
func (m *Multicaller) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if m == nil || m.caller == nil {
		return nil, fmt.Errorf("multicall caller is nil")
	}
	parsed, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}
	spans, err := SplitCalls(len(calls), m.batchSize)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(calls))
	for _, span := range spans {
		batch := make([]call3, 0, span.To-span.From)
		for _, c := range calls[span.From:span.To] {
			batch = append(batch, call3{Target: c.Target, AllowFailure: true, CallData: c.CallData})
		}
		out, err := m.aggregate(ctx, parsed, batch)
		if err != nil {
			return nil, fmt.Errorf("multicall batch %d-%d: %w", span.From, span.To, err)
		}
		results = append(results, out...)
	}
	return results, nil
}

func (m *Multicaller) aggregate(ctx context.Context, parsed abi.ABI, batch []call3) ([]Result, error) {
	data, err := parsed.Pack("aggregate3", batch)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}
	resp, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}
	values, err := parsed.Unpack("aggregate3", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack aggregate3: %d values", len(values))
	}
	decoded := *abi.ConvertType(values[0], new([]result3)).(*[]result3)
	if len(decoded) != len(batch) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(decoded), len(batch))
	}

	out := make([]Result, len(decoded))
	for i, r := range decoded {
		out[i] = Result{Success: r.Success, ReturnData: r.ReturnData}
	}
	return out, nil
}
