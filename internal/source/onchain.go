package source

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

// Aggregator is the batched reader used by on-chain sources.
type Aggregator interface {
	Aggregate(ctx context.Context, calls []dex.Call) ([]dex.Result, error)
}

// OnChainV2 reads constant-product pairs from the factory and pair contracts.
type OnChainV2 struct {
	reader   Aggregator
	factory  common.Address
	fee      uint32
	bases    []common.Address
	registry Registry
	logger   *zap.Logger
}

func NewOnChainV2(reader Aggregator, factory common.Address, fee uint32, bases []common.Address, registry Registry, logger *zap.Logger) *OnChainV2 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChainV2{reader: reader, factory: factory, fee: fee, bases: bases, registry: registry, logger: logger}
}

func (s *OnChainV2) Name() string { return "onchain-v2" }

func (s *OnChainV2) Protocol() model.Protocol { return model.ProtocolV2 }

func (s *OnChainV2) QueryPools(ctx context.Context, a, b model.Currency, depth int) ([]model.Pool, error) {
	if s.factory == (common.Address{}) {
		return nil, fmt.Errorf("v2 factory not configured")
	}
	factoryABI, err := dex.V2FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 factory abi: %w", err)
	}
	pairABI, err := dex.V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 pair abi: %w", err)
	}

	pairs := CandidatePairs(a.TokenAddress(), b.TokenAddress(), s.bases, depth)
	calls := make([]dex.Call, 0, len(pairs))
	for _, pair := range pairs {
		data, err := factoryABI.Pack("getPair", pair.Token0, pair.Token1)
		if err != nil {
			return nil, fmt.Errorf("pack getPair: %w", err)
		}
		calls = append(calls, dex.Call{Target: s.factory, CallData: data})
	}
	results, err := s.reader.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("query pairs: %w", err)
	}

	type found struct {
		pair    TokenPair
		address common.Address
	}
	existing := make([]found, 0, len(pairs))
	for i, res := range results {
		address, ok := decodeAddress(factoryABI.Unpack, "getPair", res)
		if !ok {
			continue
		}
		existing = append(existing, found{pair: pairs[i], address: address})
	}
	if len(existing) == 0 {
		return nil, nil
	}

	reserveCalls := make([]dex.Call, 0, len(existing))
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}
	for _, f := range existing {
		reserveCalls = append(reserveCalls, dex.Call{Target: f.address, CallData: data})
	}
	results, err = s.reader.Aggregate(ctx, reserveCalls)
	if err != nil {
		return nil, fmt.Errorf("query reserves: %w", err)
	}

	tokens := newResolver(s.registry, a, b)
	pools := make([]model.Pool, 0, len(existing))
	for i, res := range results {
		f := existing[i]
		if !res.Success {
			s.logger.Debug("getReserves failed", zap.String("pair", f.address.Hex()))
			continue
		}
		values, err := pairABI.Unpack("getReserves", res.ReturnData)
		if err != nil || len(values) < 2 {
			s.logger.Debug("getReserves decode failed", zap.String("pair", f.address.Hex()), zap.Error(err))
			continue
		}
		r0, err0 := dex.AsBigInt(values[0])
		r1, err1 := dex.AsBigInt(values[1])
		if err0 != nil || err1 != nil {
			continue
		}
		token0, ok0 := tokens.lookup(f.pair.Token0)
		token1, ok1 := tokens.lookup(f.pair.Token1)
		if !ok0 || !ok1 {
			s.logger.Debug("pair token not in registry", zap.String("pair", f.address.Hex()))
			continue
		}
		pool := model.Pool{
			Protocol: model.ProtocolV2,
			Address:  f.address,
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

// OnChainV3 reads concentrated-liquidity pools for each configured fee tier.
type OnChainV3 struct {
	reader   Aggregator
	factory  common.Address
	feeTiers []uint32
	bases    []common.Address
	registry Registry
	logger   *zap.Logger
}

func NewOnChainV3(reader Aggregator, factory common.Address, feeTiers []uint32, bases []common.Address, registry Registry, logger *zap.Logger) *OnChainV3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChainV3{reader: reader, factory: factory, feeTiers: feeTiers, bases: bases, registry: registry, logger: logger}
}

func (s *OnChainV3) Name() string { return "onchain-v3" }

func (s *OnChainV3) Protocol() model.Protocol { return model.ProtocolV3 }

func (s *OnChainV3) QueryPools(ctx context.Context, a, b model.Currency, depth int) ([]model.Pool, error) {
	if s.factory == (common.Address{}) {
		return nil, fmt.Errorf("v3 factory not configured")
	}
	factoryABI, err := dex.V3FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse v3 factory abi: %w", err)
	}
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse v3 pool abi: %w", err)
	}

	type candidate struct {
		pair    TokenPair
		fee     uint32
		address common.Address
	}
	pairs := CandidatePairs(a.TokenAddress(), b.TokenAddress(), s.bases, depth)
	candidates := make([]candidate, 0, len(pairs)*len(s.feeTiers))
	calls := make([]dex.Call, 0, cap(candidates))
	for _, pair := range pairs {
		for _, fee := range s.feeTiers {
			data, err := factoryABI.Pack("getPool", pair.Token0, pair.Token1, new(big.Int).SetUint64(uint64(fee)))
			if err != nil {
				return nil, fmt.Errorf("pack getPool: %w", err)
			}
			candidates = append(candidates, candidate{pair: pair, fee: fee})
			calls = append(calls, dex.Call{Target: s.factory, CallData: data})
		}
	}
	results, err := s.reader.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}

	existing := make([]candidate, 0, len(candidates))
	for i, res := range results {
		address, ok := decodeAddress(factoryABI.Unpack, "getPool", res)
		if !ok {
			continue
		}
		c := candidates[i]
		c.address = address
		existing = append(existing, c)
	}
	if len(existing) == 0 {
		return nil, nil
	}

	slot0Data, err := poolABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("pack slot0: %w", err)
	}
	liquidityData, err := poolABI.Pack("liquidity")
	if err != nil {
		return nil, fmt.Errorf("pack liquidity: %w", err)
	}
	stateCalls := make([]dex.Call, 0, len(existing)*2)
	for _, c := range existing {
		stateCalls = append(stateCalls,
			dex.Call{Target: c.address, CallData: slot0Data},
			dex.Call{Target: c.address, CallData: liquidityData},
		)
	}
	results, err = s.reader.Aggregate(ctx, stateCalls)
	if err != nil {
		return nil, fmt.Errorf("query pool state: %w", err)
	}

	tokens := newResolver(s.registry, a, b)
	pools := make([]model.Pool, 0, len(existing))
	for i, c := range existing {
		slot0, liq := results[2*i], results[2*i+1]
		if !slot0.Success || !liq.Success {
			s.logger.Debug("pool state call failed", zap.String("pool", c.address.Hex()))
			continue
		}
		slotValues, err := poolABI.Unpack("slot0", slot0.ReturnData)
		if err != nil || len(slotValues) < 2 {
			s.logger.Debug("slot0 decode failed", zap.String("pool", c.address.Hex()), zap.Error(err))
			continue
		}
		liqValues, err := poolABI.Unpack("liquidity", liq.ReturnData)
		if err != nil || len(liqValues) < 1 {
			s.logger.Debug("liquidity decode failed", zap.String("pool", c.address.Hex()), zap.Error(err))
			continue
		}
		sqrtPrice, errSqrt := dex.AsBigInt(slotValues[0])
		tickInt, errTick := dex.AsBigInt(slotValues[1])
		liquidity, errLiq := dex.AsBigInt(liqValues[0])
		if errSqrt != nil || errTick != nil || errLiq != nil {
			continue
		}
		tick, err := dex.Int24FromBig(tickInt)
		if err != nil {
			continue
		}
		token0, ok0 := tokens.lookup(c.pair.Token0)
		token1, ok1 := tokens.lookup(c.pair.Token1)
		if !ok0 || !ok1 {
			s.logger.Debug("pool token not in registry", zap.String("pool", c.address.Hex()))
			continue
		}
		pool := model.Pool{
			Protocol:     model.ProtocolV3,
			Address:      c.address,
			Token0:       token0,
			Token1:       token1,
			Fee:          c.fee,
			SqrtPriceX96: sqrtPrice,
			Liquidity:    liquidity,
			Tick:         tick,
		}
		if pool.HasLiquidity() {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

type unpackFunc func(name string, data []byte) ([]interface{}, error)

func decodeAddress(unpack unpackFunc, method string, res dex.Result) (common.Address, bool) {
	if !res.Success {
		return common.Address{}, false
	}
	values, err := unpack(method, res.ReturnData)
	if err != nil || len(values) == 0 {
		return common.Address{}, false
	}
	address, err := dex.AsAddress(values[0])
	if err != nil || address == (common.Address{}) {
		return common.Address{}, false
	}
	return address, true
}
