package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapRouter/internal/config"
	"swapRouter/internal/orchestrator"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	searchOpts, err := a.searchOptions()
	if err != nil {
		return err
	}
	pipeline := orchestrator.NewPipeline(orchestrator.Config{
		Search:  searchOpts,
		ChainID: a.network.ChainID,
	}, orchestrator.Deps{
		Aggregator: a.agg,
		Searcher:   a.search,
		GasOracle:  a.chain,
		Journal:    a.journal,
		Metrics:    a.metrics,
	}, logger)

	logger.Info("quote start",
		zap.String("network", a.network.Name),
		zap.String("rpc", cfg.RPCURL),
		zap.String("token_in", a.tokenIn.Symbol),
		zap.String("token_out", a.tokenOut.Symbol),
		zap.String("amount", a.request.Amount.String()),
		zap.String("trade_type", a.request.Type.String()),
		zap.Strings("sources", cfg.Sources),
	)

	trade, err := pipeline.Quote(ctx, a.request)
	if err != nil {
		return err
	}
	logTrade(logger, trade)
	return nil
}
