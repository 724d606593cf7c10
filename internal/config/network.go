package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"swapRouter/internal/model"
)

// Network is the immutable per-chain registry the pipeline runs against.
type Network struct {
	Name    string
	ChainID uint64
	RPCURL  string
	Native  model.Currency
	Tokens  []model.Currency
	// Bases are the intermediate tokens used to enumerate candidate pairs.
	Bases []common.Address

	SmartRouter common.Address
	V2Factory   common.Address
	V3Factory   common.Address
	Multicall   common.Address
	V2Fee       uint32
	V3FeeTiers  []uint32
	SubgraphV2  string
	SubgraphV3  string

	// Unresolved lists registry tokens whose decimals must be read on chain.
	Unresolved []common.Address
}

// Token resolves a symbol, address or the native symbol to a currency.
func (n Network) Token(ref string) (model.Currency, error) {
	ref = strings.TrimSpace(ref)
	if strings.EqualFold(ref, n.Native.Symbol) || strings.EqualFold(ref, "native") {
		return n.Native, nil
	}
	if common.IsHexAddress(ref) {
		address := common.HexToAddress(ref)
		for _, token := range n.Tokens {
			if token.Address == address {
				return token, nil
			}
		}
		return model.Currency{}, fmt.Errorf("token %s not in %s registry", address.Hex(), n.Name)
	}
	for _, token := range n.Tokens {
		if strings.EqualFold(token.Symbol, ref) {
			return token, nil
		}
	}
	return model.Currency{}, fmt.Errorf("unknown token %q on %s", ref, n.Name)
}

// TokenByAddress returns the registry entry for address.
func (n Network) TokenByAddress(address common.Address) (model.Currency, bool) {
	for _, token := range n.Tokens {
		if token.Address == address {
			return token, true
		}
	}
	return model.Currency{}, false
}

// WrappedNative returns the ERC20 wrapper of the native currency.
func (n Network) WrappedNative() (model.Currency, bool) {
	return n.TokenByAddress(n.Native.Wrapped)
}

// WithToken returns a copy of n with token registered or replaced.
func (n Network) WithToken(token model.Currency) Network {
	out := n
	out.Tokens = make([]model.Currency, 0, len(n.Tokens)+1)
	replaced := false
	for _, existing := range n.Tokens {
		if existing.Address == token.Address {
			out.Tokens = append(out.Tokens, token)
			replaced = true
			continue
		}
		out.Tokens = append(out.Tokens, existing)
	}
	if !replaced {
		out.Tokens = append(out.Tokens, token)
	}
	out.Unresolved = make([]common.Address, 0, len(n.Unresolved))
	for _, address := range n.Unresolved {
		if address != token.Address {
			out.Unresolved = append(out.Unresolved, address)
		}
	}
	return out
}

const etherlinkChainID = 42793

// DefaultNetworks returns the built-in registry.
func DefaultNetworks() map[string]Network {
	wxtz := common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb")
	usdc := common.HexToAddress("0x796Ea11Fa2dD751eD01b53C372fFDB4AAa8f00F9")
	usdt := common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A")
	weth := common.HexToAddress("0xfc24f770F94edBca6D6f885E12d4317320BcB401")

	etherlink := Network{
		Name:    "etherlink",
		ChainID: etherlinkChainID,
		RPCURL:  "https://node.mainnet.etherlink.com",
		Native:  model.NewNative(etherlinkChainID, 18, "XTZ", wxtz),
		Tokens: []model.Currency{
			model.NewToken(etherlinkChainID, wxtz, 18, "WXTZ"),
			model.NewToken(etherlinkChainID, usdc, 6, "USDC"),
			model.NewToken(etherlinkChainID, usdt, 6, "USDT"),
			model.NewToken(etherlinkChainID, weth, 18, "WETH"),
		},
		Bases:      []common.Address{wxtz, usdc, usdt, weth},
		Multicall:  common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11"),
		V2Fee:      2500,
		V3FeeTiers: []uint32{100, 500, 2500, 10000},
		SubgraphV2: "https://api.studio.thegraph.com/query/69431/exchange-v2-etherlink/version/latest",
		SubgraphV3: "https://api.studio.thegraph.com/query/69431/exchange-v3-etherlink/version/latest",
	}
	etherlink.Native.Name = "tez"
	return map[string]Network{etherlink.Name: etherlink}
}

type tokenFile struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals *uint8 `mapstructure:"decimals"`
}

type nativeFile struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	Wrapped  string `mapstructure:"wrapped"`
}

type networkFile struct {
	ChainID     uint64      `mapstructure:"chain-id"`
	RPC         string      `mapstructure:"rpc"`
	Native      *nativeFile `mapstructure:"native"`
	Tokens      []tokenFile `mapstructure:"tokens"`
	Bases       []string    `mapstructure:"bases"`
	SmartRouter string      `mapstructure:"smart-router"`
	V2Factory   string      `mapstructure:"v2-factory"`
	V3Factory   string      `mapstructure:"v3-factory"`
	Multicall   string      `mapstructure:"multicall"`
	V2Fee       uint32      `mapstructure:"v2-fee"`
	V3FeeTiers  []uint32    `mapstructure:"v3-fee-tiers"`
	SubgraphV2  string      `mapstructure:"subgraph-v2"`
	SubgraphV3  string      `mapstructure:"subgraph-v3"`
}

// loadNetworks overlays the networks key of the config file on the defaults.
func loadNetworks(v *viper.Viper) (map[string]Network, error) {
	networks := DefaultNetworks()
	if !v.IsSet("networks") {
		return networks, nil
	}

	var files map[string]networkFile
	if err := v.UnmarshalKey("networks", &files); err != nil {
		return nil, fmt.Errorf("decode networks: %w", err)
	}
	for name, file := range files {
		name = strings.ToLower(name)
		merged, err := file.apply(name, networks[name])
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		networks[name] = merged
	}
	return networks, nil
}

func (f networkFile) apply(name string, base Network) (Network, error) {
	n := base
	n.Name = name
	if f.ChainID != 0 {
		n.ChainID = f.ChainID
	}
	if n.ChainID == 0 {
		return Network{}, fmt.Errorf("chain-id is required")
	}
	if f.RPC != "" {
		n.RPCURL = f.RPC
	}
	if f.Native != nil {
		wrapped, err := ParseAddress(f.Native.Wrapped)
		if err != nil {
			return Network{}, fmt.Errorf("native wrapped: %w", err)
		}
		n.Native = model.NewNative(n.ChainID, f.Native.Decimals, f.Native.Symbol, wrapped)
		n.Native.Name = f.Native.Name
	}
	if len(f.Tokens) > 0 {
		tokens := make([]model.Currency, 0, len(f.Tokens))
		var unresolved []common.Address
		for _, tf := range f.Tokens {
			address, err := ParseAddress(tf.Address)
			if err != nil {
				return Network{}, fmt.Errorf("token: %w", err)
			}
			token := model.NewToken(n.ChainID, address, 0, tf.Symbol)
			token.Name = tf.Name
			if tf.Decimals != nil {
				token.Decimals = *tf.Decimals
			} else {
				unresolved = append(unresolved, address)
			}
			tokens = append(tokens, token)
		}
		n.Tokens = tokens
		n.Unresolved = unresolved
	}
	if len(f.Bases) > 0 {
		bases := make([]common.Address, 0, len(f.Bases))
		for _, ref := range f.Bases {
			token, err := n.Token(ref)
			if err != nil {
				return Network{}, fmt.Errorf("base: %w", err)
			}
			bases = append(bases, token.TokenAddress())
		}
		n.Bases = bases
	}

	for _, field := range []struct {
		raw string
		dst *common.Address
	}{
		{f.SmartRouter, &n.SmartRouter},
		{f.V2Factory, &n.V2Factory},
		{f.V3Factory, &n.V3Factory},
		{f.Multicall, &n.Multicall},
	} {
		if field.raw == "" {
			continue
		}
		address, err := ParseAddress(field.raw)
		if err != nil {
			return Network{}, err
		}
		*field.dst = address
	}

	if f.V2Fee != 0 {
		n.V2Fee = f.V2Fee
	}
	if len(f.V3FeeTiers) > 0 {
		n.V3FeeTiers = append([]uint32(nil), f.V3FeeTiers...)
	}
	if f.SubgraphV2 != "" {
		n.SubgraphV2 = f.SubgraphV2
	}
	if f.SubgraphV3 != "" {
		n.SubgraphV3 = f.SubgraphV3
	}
	return n, nil
}
