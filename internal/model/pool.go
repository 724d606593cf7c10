package model

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol tags a pool pricing family.
type Protocol uint8

const (
	ProtocolV2 Protocol = iota + 1
	ProtocolV3
)

func (p Protocol) String() string {
	switch p {
	case ProtocolV2:
		return "v2"
	case ProtocolV3:
		return "v3"
	default:
		return "unknown"
	}
}

// ParseProtocol maps "v2"/"v3" to a Protocol.
func ParseProtocol(value string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "v2":
		return ProtocolV2, nil
	case "v3":
		return ProtocolV3, nil
	default:
		return 0, fmt.Errorf("unsupported protocol: %s", value)
	}
}

// PoolKey identifies a pool across sources.
type PoolKey struct {
	Protocol Protocol
	Address  common.Address
}

func (k PoolKey) String() string {
	return k.Protocol.String() + ":" + strings.ToLower(k.Address.Hex())
}

// Less orders keys by protocol, then address bytes.
func (k PoolKey) Less(other PoolKey) bool {
	if k.Protocol != other.Protocol {
		return k.Protocol < other.Protocol
	}
	return bytes.Compare(k.Address.Bytes(), other.Address.Bytes()) < 0
}

// Pool is an immutable liquidity snapshot between two tokens.
//
// Fee is expressed in parts per million. V2 pools carry reserves, V3 pools
// carry the active sqrt price and in-range liquidity.
type Pool struct {
	Protocol Protocol
	Address  common.Address
	Token0   Currency
	Token1   Currency
	Fee      uint32

	Reserve0 *big.Int
	Reserve1 *big.Int

	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

func (p Pool) Key() PoolKey {
	return PoolKey{Protocol: p.Protocol, Address: p.Address}
}

// Involves reports whether the pool trades token.
func (p Pool) Involves(token common.Address) bool {
	return p.Token0.TokenAddress() == token || p.Token1.TokenAddress() == token
}

// Other returns the counterpart currency of token.
func (p Pool) Other(token common.Address) (Currency, bool) {
	switch token {
	case p.Token0.TokenAddress():
		return p.Token1, true
	case p.Token1.TokenAddress():
		return p.Token0, true
	default:
		return Currency{}, false
	}
}

// CurrencyOf returns the pool-side currency for token.
func (p Pool) CurrencyOf(token common.Address) (Currency, bool) {
	switch token {
	case p.Token0.TokenAddress():
		return p.Token0, true
	case p.Token1.TokenAddress():
		return p.Token1, true
	default:
		return Currency{}, false
	}
}

// HasLiquidity reports whether the snapshot can price a swap at all.
func (p Pool) HasLiquidity() bool {
	switch p.Protocol {
	case ProtocolV2:
		return p.Reserve0 != nil && p.Reserve1 != nil && p.Reserve0.Sign() > 0 && p.Reserve1.Sign() > 0
	case ProtocolV3:
		return p.SqrtPriceX96 != nil && p.Liquidity != nil && p.SqrtPriceX96.Sign() > 0 && p.Liquidity.Sign() > 0
	default:
		return false
	}
}

func (p Pool) String() string {
	return fmt.Sprintf("%s %s/%s fee=%d", p.Key(), p.Token0.Symbol, p.Token1.Symbol, p.Fee)
}
