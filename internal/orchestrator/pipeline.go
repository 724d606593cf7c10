// Package orchestrator runs the quote and swap pipeline and owns the active
// trade.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
	"swapRouter/internal/router"
	"swapRouter/internal/storage"
	"swapRouter/internal/submit"
	"swapRouter/internal/swap"
)

// Aggregator collects candidate pools for a pair.
type Aggregator interface {
	Aggregate(ctx context.Context, a, b model.Currency) ([]model.Pool, error)
}

// Searcher finds the best trade over a pool snapshot.
type Searcher interface {
	BestTrade(ctx context.Context, amount model.CurrencyAmount, quoteCurrency model.Currency, tradeType model.TradeType, pools []model.Pool, gas router.GasOracle, opts router.Options) (*model.Trade, error)
}

// Estimator returns a padded gas limit for a call.
type Estimator interface {
	WithMargin(ctx context.Context, from common.Address, call *model.SwapCall, marginBps uint32) (*big.Int, error)
}

// Submitter gates and sends transactions.
type Submitter interface {
	Refresh(ctx context.Context) (submit.State, error)
	Submit(ctx context.Context, req submit.TxRequest) (submit.TxHandle, error)
}

// Config holds the pipeline settings.
type Config struct {
	Search       router.Options
	ChainID      uint64
	Router       common.Address
	Account      common.Address
	Recipient    common.Address
	SlippageBps  uint32
	GasMarginBps uint32
	Deadline     time.Duration
}

// QuoteRequest asks for a trade. For exact input Amount is sold for Quote;
// for exact output Amount is bought with Quote.
type QuoteRequest struct {
	Amount model.CurrencyAmount
	Quote  model.Currency
	Type   model.TradeType
}

// SwapResult describes a submitted swap.
type SwapResult struct {
	Trade    *model.Trade
	Call     *model.SwapCall
	GasLimit *big.Int
	Handle   submit.TxHandle
}

// Pipeline runs quote and swap requests. Quotes may run concurrently; the
// latest issued request wins.
type Pipeline struct {
	cfg       Config
	agg       Aggregator
	search    Searcher
	gas       router.GasOracle
	estimator Estimator
	submitter Submitter
	journal   storage.Journal
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	seq atomic.Uint64

	mu        sync.RWMutex
	active    *model.Trade
	activeSeq uint64
}

// Deps groups the pipeline collaborators. Estimator and Submitter may be nil
// for quote-only use; Journal may be nil.
type Deps struct {
	Aggregator Aggregator
	Searcher   Searcher
	GasOracle  router.GasOracle
	Estimator  Estimator
	Submitter  Submitter
	Journal    storage.Journal
	Metrics    *metrics.Metrics
}

func NewPipeline(cfg Config, deps Deps, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		agg:       deps.Aggregator,
		search:    deps.Searcher,
		gas:       deps.GasOracle,
		estimator: deps.Estimator,
		submitter: deps.Submitter,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Trade returns the active trade, nil before the first successful quote.
func (p *Pipeline) Trade() *model.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Quote aggregates pools and searches the best trade. A result is dropped
// with model.ErrSuperseded when a newer quote was issued meanwhile. A failed
// quote leaves the active trade untouched.
func (p *Pipeline) Quote(ctx context.Context, req QuoteRequest) (*model.Trade, error) {
	if p.agg == nil || p.search == nil {
		return nil, fmt.Errorf("pipeline is not configured for quoting")
	}
	seq := p.seq.Add(1)

	in, out := req.Amount.Currency, req.Quote
	if req.Type == model.ExactOutput {
		in, out = req.Quote, req.Amount.Currency
	}
	p.logger.Info("quote requested",
		zap.Uint64("seq", seq),
		zap.String("trade_type", req.Type.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("quote", req.Quote.Symbol),
	)

	var trade *model.Trade
	pools, err := p.agg.Aggregate(ctx, in, out)
	if err == nil {
		trade, err = p.search.BestTrade(ctx, req.Amount, req.Quote, req.Type, pools, p.gas, p.cfg.Search)
	}
	p.record(ctx, storage.NewQuoteRecord(seq, p.now(), in, out, req.Type, len(pools), trade, err))

	p.mu.Lock()
	defer p.mu.Unlock()
	if latest := p.seq.Load(); seq != latest {
		p.metrics.QuoteOutcome("superseded")
		p.logger.Info("quote superseded", zap.Uint64("seq", seq), zap.Uint64("latest", latest))
		return nil, fmt.Errorf("%w: quote %d, latest %d", model.ErrSuperseded, seq, latest)
	}
	if err != nil {
		p.metrics.QuoteOutcome(outcome(err))
		p.logger.Warn("quote failed", zap.Uint64("seq", seq), zap.Error(err))
		return nil, err
	}

	p.active = trade
	p.activeSeq = seq
	p.metrics.QuoteOutcome("ok")
	p.logger.Info("quote ready",
		zap.Uint64("seq", seq),
		zap.Int("pools", len(pools)),
		zap.Int("routes", len(trade.Routes)),
		zap.Int("hops", trade.TotalHops()),
		zap.String("input", trade.InputAmount.Exact()),
		zap.String("output", trade.OutputAmount.Exact()),
		zap.Uint64("gas_estimate", trade.GasEstimate),
	)
	return trade, nil
}

// Swap executes the active trade: network precondition, call, padded gas
// limit, submission. Each attempt computes all of them anew and nothing is
// kept when a step fails.
func (p *Pipeline) Swap(ctx context.Context) (*SwapResult, error) {
	if p.estimator == nil || p.submitter == nil {
		return nil, fmt.Errorf("pipeline is not configured for swapping")
	}
	p.mu.RLock()
	trade, seq := p.active, p.activeSeq
	p.mu.RUnlock()
	if trade == nil {
		return nil, fmt.Errorf("%w: no active trade", model.ErrInvalidTradeState)
	}

	rec := storage.SubmissionRecord{
		Seq:     seq,
		At:      p.now().UTC(),
		ChainID: p.cfg.ChainID,
		Router:  p.cfg.Router.Hex(),
		From:    p.cfg.Account.Hex(),
	}
	res, err := p.swap(ctx, trade)
	if res != nil && res.Call != nil {
		rec.Value = res.Call.Value.String()
		rec.Bound = res.Call.Bound.Raw().String()
	}
	if res != nil && res.GasLimit != nil {
		rec.GasLimit = res.GasLimit.String()
	}
	if err != nil {
		rec.Error = err.Error()
		p.record(ctx, rec)
		p.logger.Warn("swap failed", zap.Uint64("seq", seq), zap.Error(err))
		return nil, err
	}
	rec.Handle = string(res.Handle)
	p.record(ctx, rec)
	return res, nil
}

func (p *Pipeline) swap(ctx context.Context, trade *model.Trade) (*SwapResult, error) {
	state, err := p.submitter.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNotConnected, err)
	}
	if state != submit.Ready {
		return nil, fmt.Errorf("%w: %s", model.ErrNotConnected, state)
	}

	call, err := swap.BuildCall(trade, swap.Options{
		Router:    p.cfg.Router,
		Recipient: p.cfg.Recipient,
		Slippage:  model.NewBips(p.cfg.SlippageBps),
		Deadline:  p.now().Add(p.cfg.Deadline),
	})
	if err != nil {
		return nil, fmt.Errorf("build call: %w", err)
	}
	res := &SwapResult{Trade: trade, Call: call}

	gasLimit, err := p.estimator.WithMargin(ctx, p.cfg.Account, call, p.cfg.GasMarginBps)
	if err != nil {
		return res, fmt.Errorf("estimate gas: %w", err)
	}
	res.GasLimit = gasLimit

	handle, err := p.submitter.Submit(ctx, submit.TxRequest{
		From:    p.cfg.Account,
		To:      call.To,
		Data:    call.Data,
		Value:   call.Value,
		Gas:     gasLimit,
		ChainID: p.cfg.ChainID,
	})
	if err != nil {
		return res, err
	}
	res.Handle = handle
	p.logger.Info("swap submitted",
		zap.String("handle", string(handle)),
		zap.String("bound", call.Bound.Exact()),
		zap.String("gas_limit", gasLimit.String()),
	)
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, rec interface{}) {
	if p.journal == nil {
		return
	}
	var err error
	switch r := rec.(type) {
	case storage.QuoteRecord:
		err = p.journal.PutQuote(ctx, r)
	case storage.SubmissionRecord:
		err = p.journal.PutSubmission(ctx, r)
	}
	if err != nil {
		p.logger.Warn("journal write failed", zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidPair):
		return "invalid_pair"
	case errors.Is(err, model.ErrNoLiquidityData):
		return "no_liquidity"
	case errors.Is(err, model.ErrNoRouteFound):
		return "no_route"
	default:
		return "error"
	}
}
