package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapRouter/internal/config"
	"swapRouter/internal/gas"
	"swapRouter/internal/orchestrator"
	"swapRouter/internal/submit"
	"swapRouter/internal/wallet"
)

func runSwap(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSwap(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Account == (common.Address{}) {
		return fmt.Errorf("account is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer a.close()

	account := wallet.NewRPCAccount(cfg.Account, a.chain, wallet.NewHandoff(cfg.Handoff), logger)
	coordinator := submit.NewCoordinator(account, a.network.ChainID, cfg.SwitchTimeout, a.metrics, logger)
	defer coordinator.Close()

	// settle the network precondition before spending a quote on it
	if _, err := coordinator.Refresh(ctx); err != nil {
		return err
	}
	coordinator.Wait()
	if state := coordinator.State(); state != submit.Ready {
		if err := coordinator.Err(); err != nil {
			return err
		}
		return fmt.Errorf("wallet not ready: %s", state)
	}

	searchOpts, err := a.searchOptions()
	if err != nil {
		return err
	}
	pipeline := orchestrator.NewPipeline(orchestrator.Config{
		Search:       searchOpts,
		ChainID:      a.network.ChainID,
		Router:       a.network.SmartRouter,
		Account:      cfg.Account,
		Recipient:    cfg.Recipient,
		SlippageBps:  cfg.SlippageBps,
		GasMarginBps: cfg.GasMarginBps,
		Deadline:     cfg.Deadline,
	}, orchestrator.Deps{
		Aggregator: a.agg,
		Searcher:   a.search,
		GasOracle:  a.chain,
		Estimator:  gas.NewEstimator(a.chain, a.metrics, logger),
		Submitter:  coordinator,
		Journal:    a.journal,
		Metrics:    a.metrics,
	}, logger)

	logger.Info("swap start",
		zap.String("network", a.network.Name),
		zap.String("account", cfg.Account.Hex()),
		zap.String("recipient", cfg.Recipient.Hex()),
		zap.String("router", a.network.SmartRouter.Hex()),
		zap.Uint32("slippage_bps", cfg.SlippageBps),
		zap.Uint32("gas_margin_bps", cfg.GasMarginBps),
		zap.String("handoff", cfg.Handoff),
	)

	trade, err := pipeline.Quote(ctx, a.request)
	if err != nil {
		return err
	}
	logTrade(logger, trade)

	res, err := pipeline.Swap(ctx)
	if err != nil {
		return err
	}
	logger.Info("swap handed off",
		zap.String("handle", string(res.Handle)),
		zap.String("bound", res.Call.Bound.String()),
		zap.String("value", res.Call.Value.String()),
		zap.String("gas_limit", res.GasLimit.String()),
	)
	return nil
}
