package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"swapRouter/internal/aggregate"
	"swapRouter/internal/chain"
	"swapRouter/internal/config"
	"swapRouter/internal/dex"
	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
	"swapRouter/internal/orchestrator"
	"swapRouter/internal/router"
	"swapRouter/internal/source"
	"swapRouter/internal/storage"
	"swapRouter/internal/storage/postgres"
)

// app holds the long-lived pieces shared by the commands.
type app struct {
	cfg      config.Config
	network  config.Network
	chain    *chain.Client
	metrics  *metrics.Metrics
	server   *metrics.Server
	store    *postgres.Store
	journal  storage.Journal
	agg      *aggregate.Aggregator
	search   *router.Router
	tokenIn  model.Currency
	tokenOut model.Currency
	request  orchestrator.QuoteRequest
	logger   *zap.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, network: cfg.Network, logger: logger}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = chainClient

	if err := a.checkChain(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.resolveTokens(ctx); err != nil {
		a.close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)
	a.server = metrics.NewServer(cfg.MetricsAddr, reg)
	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
	}

	journals := storage.Multi{storage.NewJsonlJournal(cfg.Journal)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
		if err := store.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		journals = append(journals, store)
	}
	a.journal = journals

	sources, err := a.buildSources()
	if err != nil {
		a.close()
		return nil, err
	}
	a.agg = aggregate.NewAggregator(aggregate.Config{
		Depth:         cfg.PoolDepth,
		SourceTimeout: cfg.SourceTimeout,
	}, sources, a.metrics, logger)
	a.search = router.NewRouter(a.metrics, logger)

	if err := a.buildRequest(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.server.Stop(ctx)
		cancel()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
}

// checkChain warns when the endpoint serves another chain; quoting still
// works against whatever the endpoint serves.
func (a *app) checkChain(ctx context.Context) error {
	id, err := a.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", id)
	}
	if id.Uint64() != a.network.ChainID {
		a.logger.Warn("rpc serves a different chain",
			zap.Uint64("rpc_chain_id", id.Uint64()),
			zap.Uint64("network_chain_id", a.network.ChainID),
			zap.String("network", a.network.Name),
		)
	}
	return nil
}

// resolveTokens reads decimals for registry tokens configured without them
// and for token refs given as unknown addresses.
func (a *app) resolveTokens(ctx context.Context) error {
	cache := dex.NewTokenCache()
	for _, address := range a.network.Unresolved {
		fetched, err := cache.Resolve(ctx, a.chain, a.network.ChainID, address, a.logger)
		if err != nil {
			return err
		}
		if configured, ok := a.network.TokenByAddress(address); ok && configured.Symbol != "" {
			fetched = configured.WithDecimals(fetched.Decimals)
		}
		a.network = a.network.WithToken(fetched)
		a.logger.Debug("token resolved", zap.String("token", address.Hex()), zap.Uint8("decimals", fetched.Decimals))
	}

	for _, ref := range []string{a.cfg.TokenIn, a.cfg.TokenOut} {
		if _, err := a.network.Token(ref); err == nil {
			continue
		}
		if !common.IsHexAddress(ref) {
			return fmt.Errorf("unknown token %q on %s", ref, a.network.Name)
		}
		fetched, err := cache.Resolve(ctx, a.chain, a.network.ChainID, common.HexToAddress(ref), a.logger)
		if err != nil {
			return err
		}
		a.network = a.network.WithToken(fetched)
	}
	return nil
}

func (a *app) buildSources() ([]source.Source, error) {
	n := a.network
	multicaller := dex.NewMulticaller(a.chain, n.Multicall, a.cfg.MulticallBatch)

	sources := make([]source.Source, 0, len(a.cfg.Sources))
	for _, name := range a.cfg.Sources {
		switch strings.ToLower(name) {
		case "onchain-v2":
			sources = append(sources, source.NewOnChainV2(multicaller, n.V2Factory, n.V2Fee, n.Bases, n, a.logger))
		case "onchain-v3":
			sources = append(sources, source.NewOnChainV3(multicaller, n.V3Factory, n.V3FeeTiers, n.Bases, n, a.logger))
		case "subgraph-v2":
			client := source.NewGraphClient(n.SubgraphV2, a.cfg.SubgraphRPS)
			sources = append(sources, source.NewSubgraphV2(client, n.V2Fee, a.cfg.SubgraphFirst, n.Bases, n, a.logger))
		case "subgraph-v3":
			client := source.NewGraphClient(n.SubgraphV3, a.cfg.SubgraphRPS)
			sources = append(sources, source.NewSubgraphV3(client, a.cfg.SubgraphFirst, n.Bases, n, a.logger))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return sources, nil
}

func (a *app) buildRequest() error {
	tokenIn, err := a.network.Token(a.cfg.TokenIn)
	if err != nil {
		return fmt.Errorf("token-in: %w", err)
	}
	tokenOut, err := a.network.Token(a.cfg.TokenOut)
	if err != nil {
		return fmt.Errorf("token-out: %w", err)
	}
	tradeType, err := model.ParseTradeType(a.cfg.TradeType)
	if err != nil {
		return err
	}

	exact, quote := tokenIn, tokenOut
	if tradeType == model.ExactOutput {
		exact, quote = tokenOut, tokenIn
	}
	amount, err := model.ParseAmount(exact, a.cfg.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.tokenIn, a.tokenOut = tokenIn, tokenOut
	a.request = orchestrator.QuoteRequest{Amount: amount, Quote: quote, Type: tradeType}
	return nil
}

func (a *app) searchOptions() (router.Options, error) {
	return searchOptions(a.cfg, a.network)
}

// searchOptions maps config onto router options. Net-of-gas scoring needs the
// wrapped native token in the registry to price gas.
func searchOptions(cfg config.Config, network config.Network) (router.Options, error) {
	wrapped, ok := network.WrappedNative()
	if !ok && cfg.NetOfGas {
		return router.Options{}, fmt.Errorf("net-of-gas scoring needs wrapped native %s in the %s token registry", network.Native.Wrapped.Hex(), network.Name)
	}
	return router.Options{
		MaxHops:             cfg.MaxHops,
		MaxSplits:           cfg.MaxSplits,
		DistributionPercent: cfg.DistributionPercent,
		MaxRoutes:           cfg.MaxRoutes,
		NetOfGas:            cfg.NetOfGas,
		WrappedNative:       wrapped,
	}, nil
}

func logTrade(logger *zap.Logger, trade *model.Trade) {
	for i, route := range trade.Routes {
		logger.Info("route",
			zap.Int("index", i),
			zap.String("path", route.String()),
			zap.Int("hops", route.Hops()),
			zap.String("input", route.InputAmount.Exact()),
			zap.String("output", route.OutputAmount.Exact()),
		)
	}
	fields := []zap.Field{
		zap.String("trade_type", trade.Type.String()),
		zap.String("input", trade.InputAmount.String()),
		zap.String("output", trade.OutputAmount.String()),
		zap.Uint64("gas_estimate", trade.GasEstimate),
	}
	if trade.GasCostInQuote.Raw().Sign() > 0 {
		fields = append(fields, zap.String("gas_cost", trade.GasCostInQuote.String()))
	}
	logger.Info("best trade", fields...)
}
