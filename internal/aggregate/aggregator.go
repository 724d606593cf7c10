package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
	"swapRouter/internal/source"
)

// Config controls candidate pool aggregation.
type Config struct {
	// Depth bounds pair enumeration through base tokens (1..3).
	Depth int
	// SourceTimeout bounds each source independently.
	SourceTimeout time.Duration
}

// Aggregator fans a pair query out to every source and merges the answers.
type Aggregator struct {
	cfg     Config
	sources []source.Source
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewAggregator(cfg Config, sources []source.Source, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 2
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 10 * time.Second
	}
	return &Aggregator{cfg: cfg, sources: sources, metrics: m, logger: logger}
}

// Aggregate returns the deduplicated candidate pools for a and b, sorted by
// (protocol, address). Sources that fail or time out are dropped; the call
// fails only when every source failed.
func (a *Aggregator) Aggregate(ctx context.Context, currencyA, currencyB model.Currency) ([]model.Pool, error) {
	if currencyA.ChainID != currencyB.ChainID {
		return nil, fmt.Errorf("%w: chain %d vs %d", model.ErrInvalidPair, currencyA.ChainID, currencyB.ChainID)
	}
	if currencyA.SameToken(currencyB) {
		return nil, fmt.Errorf("%w: %s and %s are the same token", model.ErrInvalidPair, currencyA, currencyB)
	}
	if len(a.sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", model.ErrNoLiquidityData)
	}

	results := make([][]model.Pool, len(a.sources))
	failed := make([]bool, len(a.sources))

	p := pool.New().WithErrors().WithContext(ctx)
	for i, src := range a.sources {
		i, src := i, src
		p.Go(func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer cancel()

			start := time.Now()
			pools, err := src.QueryPools(ctx, currencyA, currencyB, a.cfg.Depth)
			a.metrics.ObserveSource(src.Name(), len(pools), time.Since(start), err)
			if err != nil {
				failed[i] = true
				a.logger.Warn("liquidity source failed",
					zap.String("source", src.Name()),
					zap.Duration("took", time.Since(start)),
					zap.Error(err),
				)
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			results[i] = pools
			a.logger.Debug("liquidity source answered",
				zap.String("source", src.Name()),
				zap.Int("pools", len(pools)),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		})
	}
	sourceErr := p.Wait()

	allFailed := true
	for _, f := range failed {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrNoLiquidityData, sourceErr)
	}

	merged := Merge(results...)
	a.logger.Info("candidate pools aggregated",
		zap.String("pair", currencyA.Symbol+"/"+currencyB.Symbol),
		zap.Int("pools", len(merged)),
		zap.Int("failed_sources", countTrue(failed)),
	)
	return merged, nil
}

// Merge concatenates pool lists keeping the first occurrence of every
// (protocol, address) key, then sorts by key.
func Merge(lists ...[]model.Pool) []model.Pool {
	seen := make(map[model.PoolKey]struct{})
	out := make([]model.Pool, 0)
	for _, list := range lists {
		for _, p := range list {
			key := p.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().Less(out[j].Key())
	})
	return out
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}

