package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Currency identifies a fungible asset on a network.
type Currency struct {
	ChainID  uint64         `json:"chain_id"`
	Address  common.Address `json:"address"`
	Native   bool           `json:"native"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
	// Wrapped is the ERC20 wrapper used by pools when Native is set.
	Wrapped common.Address `json:"wrapped,omitempty"`
}

// NewToken builds an ERC20 currency.
func NewToken(chainID uint64, address common.Address, decimals uint8, symbol string) Currency {
	return Currency{ChainID: chainID, Address: address, Decimals: decimals, Symbol: symbol}
}

// NewNative builds the native currency of a network.
func NewNative(chainID uint64, decimals uint8, symbol string, wrapped common.Address) Currency {
	return Currency{ChainID: chainID, Native: true, Decimals: decimals, Symbol: symbol, Wrapped: wrapped}
}

// WithDecimals returns a copy with decimals set.
func (c Currency) WithDecimals(decimals uint8) Currency {
	c.Decimals = decimals
	return c
}

// TokenAddress returns the address pools use for this currency.
func (c Currency) TokenAddress() common.Address {
	if c.Native {
		return c.Wrapped
	}
	return c.Address
}

// Equal reports whether both values describe the same asset.
func (c Currency) Equal(other Currency) bool {
	return c.ChainID == other.ChainID && c.Native == other.Native && c.Address == other.Address
}

// SameToken reports whether both currencies trade as the same pool token.
func (c Currency) SameToken(other Currency) bool {
	return c.ChainID == other.ChainID && c.TokenAddress() == other.TokenAddress()
}

func (c Currency) String() string {
	if c.Native {
		return fmt.Sprintf("%s(native:%d)", c.Symbol, c.ChainID)
	}
	return fmt.Sprintf("%s(%s)", c.Symbol, strings.ToLower(c.Address.Hex()))
}
