package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapRouter/internal/model"
	"swapRouter/internal/router"
	"swapRouter/internal/storage"
	"swapRouter/internal/submit"
)

var (
	usdt = model.NewToken(42793, common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A"), 6, "USDT")
	wxtz = model.NewToken(42793, common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb"), 18, "WXTZ")

	routerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	account    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// gatedAggregator parks the n-th call until gates[n] closes.
type gatedAggregator struct {
	mu    sync.Mutex
	gates map[int]chan struct{}
	calls int
	err   error
}

func (a *gatedAggregator) Aggregate(ctx context.Context, x, y model.Currency) ([]model.Pool, error) {
	a.mu.Lock()
	a.calls++
	gate := a.gates[a.calls]
	err := a.err
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []model.Pool{{Protocol: model.ProtocolV2, Address: common.HexToAddress("0x01"), Token0: x, Token1: y}}, nil
}

// doubler quotes every trade at twice the input.
type doubler struct{}

func (doubler) BestTrade(_ context.Context, amount model.CurrencyAmount, quote model.Currency, tradeType model.TradeType, pools []model.Pool, _ router.GasOracle, _ router.Options) (*model.Trade, error) {
	out := model.MustAmount(quote, new(big.Int).Mul(amount.Raw(), big.NewInt(2)))
	return &model.Trade{
		Type: tradeType,
		Routes: []model.Route{{
			Pools:        pools,
			Path:         []model.Currency{amount.Currency, quote},
			Percent:      100,
			InputAmount:  amount,
			OutputAmount: out,
		}},
		InputAmount:  amount,
		OutputAmount: out,
	}, nil
}

type fakeEstimator struct {
	err   error
	calls int
}

func (e *fakeEstimator) WithMargin(_ context.Context, _ common.Address, _ *model.SwapCall, marginBps uint32) (*big.Int, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return big.NewInt(200_000 * int64(10_000+marginBps) / 10_000), nil
}

type fakeSubmitter struct {
	state submit.State
	sent  []submit.TxRequest
}

func (s *fakeSubmitter) Refresh(context.Context) (submit.State, error) {
	return s.state, nil
}

func (s *fakeSubmitter) Submit(_ context.Context, req submit.TxRequest) (submit.TxHandle, error) {
	if s.state != submit.Ready {
		return "", model.ErrNotConnected
	}
	s.sent = append(s.sent, req)
	return "0xfeed", nil
}

func testConfig() Config {
	return Config{
		Search:       router.DefaultOptions(),
		ChainID:      42793,
		Router:       routerAddr,
		Account:      account,
		Recipient:    account,
		SlippageBps:  25,
		GasMarginBps: 1000,
		Deadline:     20 * time.Minute,
	}
}

func amount(raw int64) model.CurrencyAmount {
	return model.MustAmount(usdt, big.NewInt(raw))
}

func TestQuoteSetsActiveTrade(t *testing.T) {
	p := NewPipeline(testConfig(), Deps{Aggregator: &gatedAggregator{}, Searcher: doubler{}}, nil)
	assert.Nil(t, p.Trade())

	trade, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(4_000_000), Quote: wxtz})
	require.NoError(t, err)
	assert.Equal(t, int64(8_000_000), trade.OutputAmount.Raw().Int64())
	assert.Same(t, trade, p.Trade())
}

func TestFailedQuoteKeepsPreviousTrade(t *testing.T) {
	agg := &gatedAggregator{}
	p := NewPipeline(testConfig(), Deps{Aggregator: agg, Searcher: doubler{}}, nil)

	first, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(1_000), Quote: wxtz})
	require.NoError(t, err)

	agg.err = model.ErrNoLiquidityData
	_, err = p.Quote(context.Background(), QuoteRequest{Amount: amount(2_000), Quote: wxtz})
	assert.True(t, errors.Is(err, model.ErrNoLiquidityData))
	assert.Same(t, first, p.Trade())
}

func TestLastQuoteWins(t *testing.T) {
	gate := make(chan struct{})
	agg := &gatedAggregator{gates: map[int]chan struct{}{1: gate}}
	p := NewPipeline(testConfig(), Deps{Aggregator: agg, Searcher: doubler{}}, nil)

	type result struct {
		trade *model.Trade
		err   error
	}
	slow := make(chan result, 1)
	go func() {
		trade, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(1_000), Quote: wxtz})
		slow <- result{trade, err}
	}()

	// wait until the slow quote is parked in the aggregator
	require.Eventually(t, func() bool {
		agg.mu.Lock()
		defer agg.mu.Unlock()
		return agg.calls == 1
	}, time.Second, time.Millisecond)

	fast, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(2_000), Quote: wxtz})
	require.NoError(t, err)

	close(gate)
	got := <-slow
	assert.Nil(t, got.trade)
	assert.True(t, errors.Is(got.err, model.ErrSuperseded))
	assert.Same(t, fast, p.Trade())
}

func TestSwapPipeline(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.jsonl")
	est := &fakeEstimator{}
	sub := &fakeSubmitter{state: submit.Ready}
	p := NewPipeline(testConfig(), Deps{
		Aggregator: &gatedAggregator{},
		Searcher:   doubler{},
		Estimator:  est,
		Submitter:  sub,
		Journal:    storage.NewJsonlJournal(journalPath),
	}, nil)

	_, err := p.Swap(context.Background())
	require.True(t, errors.Is(err, model.ErrInvalidTradeState))

	_, err = p.Quote(context.Background(), QuoteRequest{Amount: amount(4_000_000), Quote: wxtz})
	require.NoError(t, err)

	res, err := p.Swap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, submit.TxHandle("0xfeed"), res.Handle)
	assert.Equal(t, int64(220_000), res.GasLimit.Int64())
	assert.Equal(t, int64(7_980_000), res.Call.Bound.Raw().Int64())

	require.Len(t, sub.sent, 1)
	assert.Equal(t, routerAddr, sub.sent[0].To)
	assert.Equal(t, account, sub.sent[0].From)
	assert.Equal(t, uint64(42793), sub.sent[0].ChainID)
	assert.Equal(t, res.Call.Data, sub.sent[0].Data)
}

func TestSwapBlockedBeforeEstimate(t *testing.T) {
	est := &fakeEstimator{}
	sub := &fakeSubmitter{state: submit.WrongNetwork}
	p := NewPipeline(testConfig(), Deps{Aggregator: &gatedAggregator{}, Searcher: doubler{}, Estimator: est, Submitter: sub}, nil)
	_, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(4_000_000), Quote: wxtz})
	require.NoError(t, err)

	_, err = p.Swap(context.Background())
	assert.True(t, errors.Is(err, model.ErrNotConnected))
	assert.Equal(t, 0, est.calls)
	assert.Empty(t, sub.sent)
}

func TestSwapRevertNotSubmitted(t *testing.T) {
	est := &fakeEstimator{err: &model.CallWouldRevertError{Reason: "Too little received"}}
	sub := &fakeSubmitter{state: submit.Ready}
	p := NewPipeline(testConfig(), Deps{Aggregator: &gatedAggregator{}, Searcher: doubler{}, Estimator: est, Submitter: sub}, nil)
	_, err := p.Quote(context.Background(), QuoteRequest{Amount: amount(4_000_000), Quote: wxtz})
	require.NoError(t, err)

	_, err = p.Swap(context.Background())
	assert.True(t, errors.Is(err, model.ErrCallWouldRevert))
	assert.Equal(t, 1, est.calls)
	assert.Empty(t, sub.sent)
}
