package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// SwapConfig extends Config with execution settings.
type SwapConfig struct {
	Config

	Account       common.Address
	Recipient     common.Address
	SlippageBps   uint32
	GasMarginBps  uint32
	Deadline      time.Duration
	SwitchTimeout time.Duration
	Handoff       string
}

// LoadSwap merges config file, environment variables, and flags into SwapConfig.
func LoadSwap(cfgFile string, flags *pflag.FlagSet) (SwapConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SwapConfig{}, err
	}
	base, err := fromViper(v)
	if err != nil {
		return SwapConfig{}, err
	}

	account, err := ParseAddress(v.GetString("account"))
	if err != nil {
		return SwapConfig{}, fmt.Errorf("account: %w", err)
	}
	recipient := account
	if raw := v.GetString("recipient"); raw != "" {
		if recipient, err = ParseAddress(raw); err != nil {
			return SwapConfig{}, fmt.Errorf("recipient: %w", err)
		}
	}

	cfg := SwapConfig{
		Config:        base,
		Account:       account,
		Recipient:     recipient,
		SlippageBps:   v.GetUint32("slippage-bps"),
		GasMarginBps:  v.GetUint32("gas-margin-bps"),
		Deadline:      v.GetDuration("deadline"),
		SwitchTimeout: v.GetDuration("switch-timeout"),
		Handoff:       v.GetString("handoff"),
	}
	if cfg.SlippageBps >= 10_000 {
		return SwapConfig{}, fmt.Errorf("slippage-bps must be below 10000")
	}
	if cfg.Deadline <= 0 {
		return SwapConfig{}, fmt.Errorf("deadline must be positive, got %s", cfg.Deadline)
	}
	if cfg.Network.SmartRouter == (common.Address{}) {
		return SwapConfig{}, fmt.Errorf("smart router address not configured for %s", cfg.Network.Name)
	}
	return cfg, nil
}
