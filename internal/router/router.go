package router

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"swapRouter/internal/dex"
	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
)

// GasOracle reports the current gas price in wei.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Options tunes the search.
type Options struct {
	MaxHops   int
	MaxSplits int
	// DistributionPercent is the split granularity; it must divide 100.
	DistributionPercent int
	// MaxRoutes caps the candidate routes considered for splitting.
	MaxRoutes int
	// NetOfGas scores trades by output minus gas cost (input plus gas cost
	// for exact output).
	NetOfGas bool
	// WrappedNative anchors gas pricing; gas is valued through a pool pairing
	// it with the quote side.
	WrappedNative model.Currency
}

// Search size limits. The split walk grows combinatorially in both.
const (
	MaxSplitsLimit = 5
	MaxRoutesLimit = 50
)

// DefaultOptions mirrors the production defaults.
func DefaultOptions() Options {
	return Options{MaxHops: 2, MaxSplits: 2, DistributionPercent: 5, MaxRoutes: 20, NetOfGas: true}
}

func (o Options) validate() error {
	if o.MaxHops < 1 {
		return fmt.Errorf("%w: max hops %d", model.ErrInvalidSearchParams, o.MaxHops)
	}
	if o.MaxSplits < 1 || o.MaxSplits > MaxSplitsLimit {
		return fmt.Errorf("%w: max splits %d not in [1, %d]", model.ErrInvalidSearchParams, o.MaxSplits, MaxSplitsLimit)
	}
	if o.MaxRoutes > MaxRoutesLimit {
		return fmt.Errorf("%w: max routes %d above %d", model.ErrInvalidSearchParams, o.MaxRoutes, MaxRoutesLimit)
	}
	if o.DistributionPercent < 1 || o.DistributionPercent > 100 || 100%o.DistributionPercent != 0 {
		return fmt.Errorf("%w: distribution percent %d", model.ErrInvalidSearchParams, o.DistributionPercent)
	}
	return nil
}

// Router searches split trades over a fixed pool snapshot.
type Router struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{metrics: m, logger: logger}
}

// BestTrade finds the best trade for amount against quoteCurrency.
//
// For exact input, amount is what is sold and quoteCurrency is bought. For
// exact output, amount is what is bought and quoteCurrency is sold. The pool
// list is treated as read-only; identical inputs yield identical trades.
func (r *Router) BestTrade(ctx context.Context, amount model.CurrencyAmount, quoteCurrency model.Currency, tradeType model.TradeType, pools []model.Pool, gas GasOracle, opts Options) (*model.Trade, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.MaxRoutes <= 0 {
		opts.MaxRoutes = DefaultOptions().MaxRoutes
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrInvalidSearchParams)
	}
	if amount.Currency.SameToken(quoteCurrency) || amount.Currency.ChainID != quoteCurrency.ChainID {
		return nil, fmt.Errorf("%w: %s/%s", model.ErrInvalidPair, amount.Currency, quoteCurrency)
	}

	start := time.Now()
	in, out := amount.Currency, quoteCurrency
	if tradeType == model.ExactOutput {
		in, out = quoteCurrency, amount.Currency
	}

	sorted := make([]model.Pool, 0, len(pools))
	for _, p := range pools {
		if p.HasLiquidity() {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key().Less(sorted[j].Key()) })

	routes := enumerateRoutes(sorted, in, out, opts.MaxHops)
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s within %d hops", model.ErrNoRouteFound, in.Symbol, out.Symbol, opts.MaxHops)
	}

	s := newSearch(ctx, tradeType, amount.Raw(), opts)
	s.routes = s.rankRoutes(routes, opts.MaxRoutes)

	if opts.NetOfGas {
		s.gasCost = r.gasPricer(ctx, gas, sorted, opts.WrappedNative, s.scoreCurrency(in, out))
	}

	best, err := s.run()
	r.metrics.ObserveSearch(len(s.routes), time.Since(start))
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no quotable split for %s", model.ErrNoRouteFound, amount)
	}

	trade, err := s.buildTrade(best, in, out)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("best trade found",
		zap.Int("routes", len(trade.Routes)),
		zap.Int("hops", trade.TotalHops()),
		zap.String("input", trade.InputAmount.String()),
		zap.String("output", trade.OutputAmount.String()),
		zap.Duration("took", time.Since(start)),
	)
	return trade, nil
}

// gasPricer returns a converter from gas units to the score currency, or nil
// when gas cannot be priced.
func (r *Router) gasPricer(ctx context.Context, gas GasOracle, pools []model.Pool, wrapped, target model.Currency) func(uint64) *big.Int {
	if gas == nil {
		return nil
	}
	price, err := gas.GasPrice(ctx)
	if err != nil {
		r.logger.Warn("gas price unavailable, scoring gross of gas", zap.Error(err))
		return nil
	}
	if price == nil || price.Sign() <= 0 {
		return nil
	}

	native := wrapped.TokenAddress()
	if target.TokenAddress() == native {
		return func(units uint64) *big.Int {
			return new(big.Int).Mul(price, new(big.Int).SetUint64(units))
		}
	}

	var anchor *model.Pool
	for i := range pools {
		p := pools[i]
		if p.Involves(native) && p.Involves(target.TokenAddress()) {
			anchor = &p
			break
		}
	}
	if anchor == nil {
		r.logger.Debug("no pool prices gas in quote currency", zap.String("currency", target.Symbol))
		return nil
	}
	return func(units uint64) *big.Int {
		wei := new(big.Int).Mul(price, new(big.Int).SetUint64(units))
		cost, err := dex.SpotQuote(*anchor, native, wei)
		if err != nil {
			return new(big.Int)
		}
		return cost
	}
}
