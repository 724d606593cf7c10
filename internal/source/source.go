package source

import (
	"bytes"
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"swapRouter/internal/model"
)

// Source provides candidate pools for a currency pair.
type Source interface {
	Name() string
	Protocol() model.Protocol
	// QueryPools returns snapshots for pools connecting a and b, directly or
	// through base tokens up to depth.
	QueryPools(ctx context.Context, a, b model.Currency, depth int) ([]model.Pool, error)
}

// Registry resolves pool tokens to currencies.
type Registry interface {
	TokenByAddress(address common.Address) (model.Currency, bool)
}

// TokenPair is an unordered pair stored with Token0 < Token1.
type TokenPair struct {
	Token0 common.Address
	Token1 common.Address
}

// NewTokenPair orders a and b the way pool contracts do.
func NewTokenPair(a, b common.Address) TokenPair {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return TokenPair{Token0: a, Token1: b}
}

// CandidatePairs enumerates the token pairs worth querying for a -> b.
//
// depth 1 is the direct pair, depth 2 adds a/base and base/b, depth 3 adds
// base/base. The result is deduplicated and sorted.
func CandidatePairs(a, b common.Address, bases []common.Address, depth int) []TokenPair {
	seen := make(map[TokenPair]struct{})
	add := func(x, y common.Address) {
		if x == y {
			return
		}
		seen[NewTokenPair(x, y)] = struct{}{}
	}

	add(a, b)
	if depth >= 2 {
		for _, base := range bases {
			add(a, base)
			add(base, b)
		}
	}
	if depth >= 3 {
		for i, x := range bases {
			for _, y := range bases[i+1:] {
				add(x, y)
			}
		}
	}

	pairs := make([]TokenPair, 0, len(seen))
	for pair := range seen {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].Token0.Bytes(), pairs[j].Token0.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].Token1.Bytes(), pairs[j].Token1.Bytes()) < 0
	})
	return pairs
}

// resolver maps pool token addresses to currencies, preferring the query's
// own currencies so caller metadata wins over registry entries.
type resolver struct {
	registry Registry
	known    map[common.Address]model.Currency
}

func newResolver(registry Registry, currencies ...model.Currency) *resolver {
	r := &resolver{registry: registry, known: make(map[common.Address]model.Currency)}
	for _, c := range currencies {
		if c.Native {
			continue
		}
		r.known[c.Address] = c
	}
	return r
}

func (r *resolver) lookup(address common.Address) (model.Currency, bool) {
	if c, ok := r.known[address]; ok {
		return c, true
	}
	if r.registry == nil {
		return model.Currency{}, false
	}
	return r.registry.TokenByAddress(address)
}
