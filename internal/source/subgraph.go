package source

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapRouter/internal/model"
)

const v2PairsQuery = `query pairs($tokens: [String!]!, $first: Int!) {
  pairs(first: $first, orderBy: reserveUSD, orderDirection: desc, where: {token0_in: $tokens, token1_in: $tokens}) {
    id
    reserve0
    reserve1
    token0 { id symbol name decimals }
    token1 { id symbol name decimals }
  }
}`

const v3PoolsQuery = `query pools($tokens: [String!]!, $first: Int!) {
  pools(first: $first, orderBy: totalValueLockedUSD, orderDirection: desc, where: {token0_in: $tokens, token1_in: $tokens, liquidity_gt: "0"}) {
    id
    feeTier
    liquidity
    sqrtPrice
    tick
    token0 { id symbol name decimals }
    token1 { id symbol name decimals }
  }
}`

type graphToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals string `json:"decimals"`
}

type graphPair struct {
	ID       string     `json:"id"`
	Reserve0 string     `json:"reserve0"`
	Reserve1 string     `json:"reserve1"`
	Token0   graphToken `json:"token0"`
	Token1   graphToken `json:"token1"`
}

type graphPool struct {
	ID        string     `json:"id"`
	FeeTier   string     `json:"feeTier"`
	Liquidity string     `json:"liquidity"`
	SqrtPrice string     `json:"sqrtPrice"`
	Tick      *string    `json:"tick"`
	Token0    graphToken `json:"token0"`
	Token1    graphToken `json:"token1"`
}

// SubgraphV2 reads constant-product pairs from a V2 exchange subgraph.
type SubgraphV2 struct {
	client   *GraphClient
	fee      uint32
	first    int
	bases    []common.Address
	registry Registry
	logger   *zap.Logger
}

func NewSubgraphV2(client *GraphClient, fee uint32, first int, bases []common.Address, registry Registry, logger *zap.Logger) *SubgraphV2 {
	if logger == nil {
		logger = zap.NewNop()
	}
	if first <= 0 {
		first = 100
	}
	return &SubgraphV2{client: client, fee: fee, first: first, bases: bases, registry: registry, logger: logger}
}

func (s *SubgraphV2) Name() string { return "subgraph-v2" }

func (s *SubgraphV2) Protocol() model.Protocol { return model.ProtocolV2 }

func (s *SubgraphV2) QueryPools(ctx context.Context, a, b model.Currency, depth int) ([]model.Pool, error) {
	wanted, tokens := wantedPairs(a, b, s.bases, depth)
	var data struct {
		Pairs []graphPair `json:"pairs"`
	}
	vars := map[string]interface{}{"tokens": tokens, "first": s.first}
	if err := s.client.Query(ctx, v2PairsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("query v2 subgraph: %w", err)
	}

	res := newResolver(s.registry, a, b)
	pools := make([]model.Pool, 0, len(data.Pairs))
	for _, p := range data.Pairs {
		token0, token1, err := pairTokens(res, a.ChainID, p.Token0, p.Token1)
		if err != nil {
			s.logger.Debug("skip subgraph pair", zap.String("pair", p.ID), zap.Error(err))
			continue
		}
		if _, ok := wanted[NewTokenPair(token0.Address, token1.Address)]; !ok {
			continue
		}
		r0, err0 := decimalToRaw(p.Reserve0, token0.Decimals)
		r1, err1 := decimalToRaw(p.Reserve1, token1.Decimals)
		if err0 != nil || err1 != nil {
			s.logger.Debug("skip subgraph pair reserves", zap.String("pair", p.ID))
			continue
		}
		pool := model.Pool{
			Protocol: model.ProtocolV2,
			Address:  common.HexToAddress(p.ID),
			Token0:   token0,
			Token1:   token1,
			Fee:      s.fee,
			Reserve0: r0,
			Reserve1: r1,
		}
		if pool.HasLiquidity() {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

// SubgraphV3 reads concentrated-liquidity pools from a V3 exchange subgraph.
type SubgraphV3 struct {
	client   *GraphClient
	first    int
	bases    []common.Address
	registry Registry
	logger   *zap.Logger
}

func NewSubgraphV3(client *GraphClient, first int, bases []common.Address, registry Registry, logger *zap.Logger) *SubgraphV3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	if first <= 0 {
		first = 100
	}
	return &SubgraphV3{client: client, first: first, bases: bases, registry: registry, logger: logger}
}

func (s *SubgraphV3) Name() string { return "subgraph-v3" }

func (s *SubgraphV3) Protocol() model.Protocol { return model.ProtocolV3 }

func (s *SubgraphV3) QueryPools(ctx context.Context, a, b model.Currency, depth int) ([]model.Pool, error) {
	wanted, tokens := wantedPairs(a, b, s.bases, depth)
	var data struct {
		Pools []graphPool `json:"pools"`
	}
	vars := map[string]interface{}{"tokens": tokens, "first": s.first}
	if err := s.client.Query(ctx, v3PoolsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("query v3 subgraph: %w", err)
	}

	res := newResolver(s.registry, a, b)
	pools := make([]model.Pool, 0, len(data.Pools))
	for _, p := range data.Pools {
		token0, token1, err := pairTokens(res, a.ChainID, p.Token0, p.Token1)
		if err != nil {
			s.logger.Debug("skip subgraph pool", zap.String("pool", p.ID), zap.Error(err))
			continue
		}
		if _, ok := wanted[NewTokenPair(token0.Address, token1.Address)]; !ok {
			continue
		}
		fee, err := strconv.ParseUint(p.FeeTier, 10, 32)
		if err != nil {
			continue
		}
		liquidity, ok1 := new(big.Int).SetString(p.Liquidity, 10)
		sqrtPrice, ok2 := new(big.Int).SetString(p.SqrtPrice, 10)
		if !ok1 || !ok2 {
			continue
		}
		var tick int64
		if p.Tick != nil {
			tick, _ = strconv.ParseInt(*p.Tick, 10, 32)
		}
		pool := model.Pool{
			Protocol:     model.ProtocolV3,
			Address:      common.HexToAddress(p.ID),
			Token0:       token0,
			Token1:       token1,
			Fee:          uint32(fee),
			SqrtPriceX96: sqrtPrice,
			Liquidity:    liquidity,
			Tick:         int32(tick),
		}
		if pool.HasLiquidity() {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

func wantedPairs(a, b model.Currency, bases []common.Address, depth int) (map[TokenPair]struct{}, []string) {
	pairs := CandidatePairs(a.TokenAddress(), b.TokenAddress(), bases, depth)
	wanted := make(map[TokenPair]struct{}, len(pairs))
	seen := make(map[common.Address]struct{})
	tokens := make([]string, 0, len(bases)+2)
	for _, pair := range pairs {
		wanted[pair] = struct{}{}
		for _, t := range []common.Address{pair.Token0, pair.Token1} {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, strings.ToLower(t.Hex()))
		}
	}
	return wanted, tokens
}

func pairTokens(res *resolver, chainID uint64, t0, t1 graphToken) (model.Currency, model.Currency, error) {
	token0, err := graphCurrency(res, chainID, t0)
	if err != nil {
		return model.Currency{}, model.Currency{}, err
	}
	token1, err := graphCurrency(res, chainID, t1)
	if err != nil {
		return model.Currency{}, model.Currency{}, err
	}
	return token0, token1, nil
}

func graphCurrency(res *resolver, chainID uint64, t graphToken) (model.Currency, error) {
	if !common.IsHexAddress(t.ID) {
		return model.Currency{}, fmt.Errorf("invalid token id %q", t.ID)
	}
	address := common.HexToAddress(t.ID)
	if c, ok := res.lookup(address); ok {
		return c, nil
	}
	decimals, err := strconv.ParseUint(t.Decimals, 10, 8)
	if err != nil {
		return model.Currency{}, fmt.Errorf("token %s decimals %q: %w", t.ID, t.Decimals, err)
	}
	c := model.NewToken(chainID, address, uint8(decimals), t.Symbol)
	c.Name = t.Name
	return c, nil
}

// decimalToRaw converts a subgraph decimal string into raw units, rounding down.
func decimalToRaw(value string, decimals uint8) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(value))
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", value)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("negative decimal %q", value)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(rat.Num(), rat.Denom()), nil
}
