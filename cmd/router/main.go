package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "router",
		Short:        "DEX swap router for Etherlink",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Find the best trade for a pair and amount",
		RunE:  runQuote,
	}
	addQuoteFlags(quoteCmd.Flags())
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote, build the router call, estimate gas and hand the transaction off",
		RunE:  runSwap,
	}
	addQuoteFlags(swapCmd.Flags())
	swapCmd.Flags().String("account", "", "sender account address")
	swapCmd.Flags().String("recipient", "", "output recipient, defaults to the account")
	swapCmd.Flags().Uint32("slippage-bps", 25, "slippage tolerance in basis points")
	swapCmd.Flags().Uint32("gas-margin-bps", 1000, "gas limit margin in basis points")
	swapCmd.Flags().Duration("deadline", 20*time.Minute, "swap deadline from now")
	swapCmd.Flags().Duration("switch-timeout", 30*time.Second, "network switch request timeout")
	swapCmd.Flags().String("handoff", "./data/handoff.jsonl", "output JSONL for transactions ready to sign")
	root.AddCommand(swapCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addQuoteFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "RPC URL, defaults to the network's endpoint")
	fs.String("network", "etherlink", "network name from the registry")
	fs.String("token-in", "USDT", "input token symbol or address")
	fs.String("token-out", "WXTZ", "output token symbol or address")
	fs.String("amount", "4", "decimal amount of the exact side")
	fs.String("trade-type", "exact-input", "exact-input or exact-output")
	fs.Int("max-hops", 2, "maximum pools per route")
	fs.Int("max-splits", 2, "maximum routes per trade")
	fs.Int("distribution-percent", 5, "split granularity in percent")
	fs.Int("max-routes", 20, "candidate routes considered for splitting")
	fs.Bool("net-of-gas", true, "score trades net of gas cost")
	fs.StringSlice("sources", []string{"onchain-v2", "onchain-v3", "subgraph-v2"}, "liquidity sources in priority order")
	fs.Int("pool-depth", 2, "candidate pair depth (1 direct, 2 via one base, 3 via two bases)")
	fs.Duration("source-timeout", 10*time.Second, "per-source query timeout")
	fs.Int("multicall-batch", 200, "calls per multicall batch")
	fs.Float64("subgraph-rps", 5, "subgraph requests per second")
	fs.Int("subgraph-first", 100, "subgraph page size")
	fs.String("journal", "./data/journal.jsonl", "quote and submission journal JSONL")
	fs.String("pg-dsn", "", "optional Postgres DSN for the journal")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
