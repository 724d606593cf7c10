package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"swapRouter/internal/model"
	"swapRouter/internal/router"
)

// Config holds the quote pipeline configuration loaded from flags, env, or
// config file.
type Config struct {
	RPCURL    string
	Network   Network
	TokenIn   string
	TokenOut  string
	Amount    string
	TradeType string

	MaxHops             int
	MaxSplits           int
	DistributionPercent int
	MaxRoutes           int
	NetOfGas            bool

	Sources        []string
	PoolDepth      int
	SourceTimeout  time.Duration
	MulticallBatch int
	SubgraphRPS    float64
	SubgraphFirst  int

	Journal     string
	PGDSN       string
	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "etherlink")
	v.SetDefault("token-in", "USDT")
	v.SetDefault("token-out", "WXTZ")
	v.SetDefault("amount", "4")
	v.SetDefault("trade-type", "exact-input")
	v.SetDefault("max-hops", 2)
	v.SetDefault("max-splits", 2)
	v.SetDefault("distribution-percent", 5)
	v.SetDefault("max-routes", 20)
	v.SetDefault("net-of-gas", true)
	v.SetDefault("sources", "onchain-v2,onchain-v3,subgraph-v2")
	v.SetDefault("pool-depth", 2)
	v.SetDefault("source-timeout", 10*time.Second)
	v.SetDefault("multicall-batch", 200)
	v.SetDefault("subgraph-rps", 5.0)
	v.SetDefault("subgraph-first", 100)
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("slippage-bps", 25)
	v.SetDefault("gas-margin-bps", 1000)
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("switch-timeout", 30*time.Second)
	v.SetDefault("handoff", "./data/handoff.jsonl")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) (Config, error) {
	networks, err := loadNetworks(v)
	if err != nil {
		return Config{}, err
	}
	name := strings.ToLower(strings.TrimSpace(v.GetString("network")))
	network, ok := networks[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown network %q", name)
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		Network:             network,
		TokenIn:             v.GetString("token-in"),
		TokenOut:            v.GetString("token-out"),
		Amount:              v.GetString("amount"),
		TradeType:           v.GetString("trade-type"),
		MaxHops:             v.GetInt("max-hops"),
		MaxSplits:           v.GetInt("max-splits"),
		DistributionPercent: v.GetInt("distribution-percent"),
		MaxRoutes:           v.GetInt("max-routes"),
		NetOfGas:            v.GetBool("net-of-gas"),
		Sources:             getStringSlice(v, "sources"),
		PoolDepth:           v.GetInt("pool-depth"),
		SourceTimeout:       v.GetDuration("source-timeout"),
		MulticallBatch:      v.GetInt("multicall-batch"),
		SubgraphRPS:         v.GetFloat64("subgraph-rps"),
		SubgraphFirst:       v.GetInt("subgraph-first"),
		Journal:             v.GetString("journal"),
		PGDSN:               v.GetString("pg-dsn"),
		MetricsAddr:         v.GetString("metrics-addr"),
		LogLevel:            v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = network.RPCURL
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.MaxHops < 1 || c.MaxSplits < 1 {
		return fmt.Errorf("max-hops and max-splits must be >= 1")
	}
	if c.MaxSplits > router.MaxSplitsLimit {
		return fmt.Errorf("max-splits must be <= %d, got %d", router.MaxSplitsLimit, c.MaxSplits)
	}
	if c.MaxRoutes < 1 || c.MaxRoutes > router.MaxRoutesLimit {
		return fmt.Errorf("max-routes must be between 1 and %d, got %d", router.MaxRoutesLimit, c.MaxRoutes)
	}
	if c.DistributionPercent < 1 || c.DistributionPercent > 100 || 100%c.DistributionPercent != 0 {
		return fmt.Errorf("distribution-percent must divide 100, got %d", c.DistributionPercent)
	}
	if c.PoolDepth < 1 || c.PoolDepth > 3 {
		return fmt.Errorf("pool-depth must be between 1 and 3")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if _, err := model.ParseTradeType(c.TradeType); err != nil {
		return err
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
