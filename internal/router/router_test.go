package router

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"swapRouter/internal/model"
)

var (
	usdt = model.NewToken(42793, common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A"), 6, "USDT")
	xtk  = model.NewToken(42793, common.HexToAddress("0x00000000000000000000000000000000000000b1"), 6, "XTK")
	mid  = model.NewToken(42793, common.HexToAddress("0x00000000000000000000000000000000000000c1"), 18, "MID")
	wxtz = model.NewToken(42793, common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb"), 18, "WXTZ")
)

type fixedGas struct{ price *big.Int }

func (g fixedGas) GasPrice(context.Context) (*big.Int, error) { return g.price, nil }

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func mul(a int64, b *big.Int) *big.Int {
	return new(big.Int).Mul(big.NewInt(a), b)
}

func v2(addr string, t0, t1 model.Currency, r0, r1 *big.Int) model.Pool {
	return model.Pool{
		Protocol: model.ProtocolV2,
		Address:  common.HexToAddress(addr),
		Token0:   t0,
		Token1:   t1,
		Reserve0: r0,
		Reserve1: r1,
	}
}

func grossOptions() Options {
	opts := DefaultOptions()
	opts.NetOfGas = false
	return opts
}

func TestBestTradeSinglePoolPriceTwo(t *testing.T) {
	pools := []model.Pool{v2("0x01", usdt, xtk, pow10(15), mul(2, pow10(15)))}
	amount, err := model.ParseAmount(usdt, "4")
	require.NoError(t, err)

	trade, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, grossOptions())
	require.NoError(t, err)

	require.Len(t, trade.Routes, 1)
	assert.Equal(t, 1, trade.Routes[0].Hops())
	assert.Equal(t, uint32(100), trade.Routes[0].Percent)
	assert.Equal(t, int64(7_999_999), trade.OutputAmount.Raw().Int64())
	assert.Equal(t, amount.Raw(), trade.InputAmount.Raw())
	assert.True(t, trade.OutputAmount.Currency.Equal(xtk))
}

func TestBestTradeNoRouteWithinHops(t *testing.T) {
	pools := []model.Pool{
		v2("0x01", usdt, mid, pow10(12), pow10(24)),
		v2("0x02", mid, xtk, pow10(24), pow10(12)),
	}
	amount := model.MustAmount(usdt, big.NewInt(1_000_000))
	opts := grossOptions()
	opts.MaxHops = 1

	_, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, opts)
	assert.True(t, errors.Is(err, model.ErrNoRouteFound), "got %v", err)

	opts.MaxHops = 2
	trade, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, trade.TotalHops())
	assert.Equal(t, []model.Currency{usdt, mid, xtk}, trade.Routes[0].Path)
}

func TestBestTradeInvalidInput(t *testing.T) {
	pools := []model.Pool{v2("0x01", usdt, xtk, pow10(12), pow10(12))}
	r := NewRouter(nil, nil)
	amount := model.MustAmount(usdt, big.NewInt(1000))

	_, err := r.BestTrade(context.Background(), amount, usdt, model.ExactInput, pools, nil, grossOptions())
	assert.True(t, errors.Is(err, model.ErrInvalidPair))

	opts := grossOptions()
	opts.DistributionPercent = 7
	_, err = r.BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, opts)
	assert.True(t, errors.Is(err, model.ErrInvalidSearchParams))

	_, err = r.BestTrade(context.Background(), model.ZeroAmount(usdt), xtk, model.ExactInput, pools, nil, grossOptions())
	assert.True(t, errors.Is(err, model.ErrInvalidSearchParams))
}

func TestBestTradeSplitsAcrossEqualPools(t *testing.T) {
	pools := []model.Pool{
		v2("0x01", usdt, xtk, pow10(9), pow10(9)),
		v2("0x02", usdt, xtk, pow10(9), pow10(9)),
	}
	// a trade as large as either pool is far better split in half
	amount := model.MustAmount(usdt, pow10(9))

	trade, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, grossOptions())
	require.NoError(t, err)
	require.Len(t, trade.Routes, 2)
	assert.Equal(t, uint32(50), trade.Routes[0].Percent)
	assert.Equal(t, uint32(50), trade.Routes[1].Percent)

	single := grossOptions()
	single.MaxSplits = 1
	one, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, single)
	require.NoError(t, err)
	require.Len(t, one.Routes, 1)
	assert.True(t, trade.OutputAmount.Raw().Cmp(one.OutputAmount.Raw()) > 0)
}

func TestBestTradeNetOfGasPrefersFewerHops(t *testing.T) {
	pools := []model.Pool{
		v2("0x01", usdt, wxtz, pow10(18), pow10(18)),
		v2("0x02", usdt, mid, pow10(18), pow10(18)),
		v2("0x03", mid, wxtz, pow10(18), new(big.Int).Add(pow10(18), pow10(13))),
	}
	amount := model.MustAmount(usdt, pow10(12))
	opts := DefaultOptions()
	opts.MaxSplits = 1
	opts.WrappedNative = wxtz
	r := NewRouter(nil, nil)

	opts.NetOfGas = false
	gross, err := r.BestTrade(context.Background(), amount, wxtz, model.ExactInput, pools, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, gross.TotalHops())

	opts.NetOfGas = true
	net, err := r.BestTrade(context.Background(), amount, wxtz, model.ExactInput, pools, fixedGas{price: big.NewInt(1000)}, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, net.TotalHops())
	assert.False(t, net.GasCostInQuote.IsZero())
	assert.True(t, net.GasCostInQuote.Currency.Equal(wxtz))
}

func TestBestTradeExactOutput(t *testing.T) {
	pools := []model.Pool{v2("0x01", usdt, xtk, pow10(12), mul(2, pow10(12)))}
	want := model.MustAmount(xtk, big.NewInt(8_000_000))

	trade, err := NewRouter(nil, nil).BestTrade(context.Background(), want, usdt, model.ExactOutput, pools, nil, grossOptions())
	require.NoError(t, err)
	assert.Equal(t, model.ExactOutput, trade.Type)
	assert.Equal(t, want.Raw(), trade.OutputAmount.Raw())
	assert.True(t, trade.InputAmount.Currency.Equal(usdt))
	// slightly above 4 USDT because of price impact
	assert.True(t, trade.InputAmount.Raw().Cmp(big.NewInt(4_000_000)) > 0)
	assert.True(t, trade.InputAmount.Raw().Cmp(big.NewInt(4_000_100)) < 0)
}

func TestBestTradeDeterministic(t *testing.T) {
	pools := []model.Pool{
		v2("0x03", usdt, xtk, pow10(10), mul(3, pow10(10))),
		v2("0x01", usdt, xtk, pow10(10), mul(3, pow10(10))),
		v2("0x02", usdt, mid, pow10(10), pow10(22)),
		v2("0x04", mid, xtk, pow10(22), mul(3, pow10(10))),
	}
	reversed := make([]model.Pool, len(pools))
	for i, p := range pools {
		reversed[len(pools)-1-i] = p
	}
	amount := model.MustAmount(usdt, pow10(9))
	r := NewRouter(nil, nil)

	a, err := r.BestTrade(context.Background(), amount, xtk, model.ExactInput, pools, nil, grossOptions())
	require.NoError(t, err)
	b, err := r.BestTrade(context.Background(), amount, xtk, model.ExactInput, reversed, nil, grossOptions())
	require.NoError(t, err)

	require.Equal(t, len(a.Routes), len(b.Routes))
	for i := range a.Routes {
		assert.Equal(t, a.Routes[i].Percent, b.Routes[i].Percent)
		assert.Equal(t, a.Routes[i].InputAmount.Raw(), b.Routes[i].InputAmount.Raw())
		for j := range a.Routes[i].Pools {
			assert.Equal(t, a.Routes[i].Pools[j].Address, b.Routes[i].Pools[j].Address)
		}
	}
}

func TestSplitSearchStaysSmallAcrossManyPools(t *testing.T) {
	pools := make([]model.Pool, 0, 20)
	for i := 0; i < 20; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i + 1))).Hex()
		pools = append(pools, v2(addr, usdt, xtk, pow10(15), pow10(15)))
	}
	opts := grossOptions()
	opts.MaxSplits = 4

	s := newSearch(context.Background(), model.ExactInput, mul(100, pow10(12)), opts)
	s.routes = s.rankRoutes(enumerateRoutes(pools, usdt, xtk, opts.MaxHops), MaxRoutesLimit)
	require.Len(t, s.routes, 20)

	best, err := s.run()
	require.NoError(t, err)
	require.NotNil(t, best)
	require.Len(t, best.legs, 4)
	for _, l := range best.legs {
		assert.Equal(t, 25, l.percent)
	}
	// one table row per route, one entry per step
	assert.Len(t, s.table[0], 20)
	// an unpruned walk would push millions of legs here
	assert.Less(t, s.expanded, 1000)
}

func TestOptionsBoundSearchSize(t *testing.T) {
	opts := grossOptions()
	opts.MaxSplits = MaxSplitsLimit
	require.NoError(t, opts.validate())

	opts.MaxSplits = MaxSplitsLimit + 1
	assert.ErrorIs(t, opts.validate(), model.ErrInvalidSearchParams)

	opts = grossOptions()
	opts.MaxRoutes = MaxRoutesLimit + 1
	assert.ErrorIs(t, opts.validate(), model.ErrInvalidSearchParams)
}

func TestBetterTieBreak(t *testing.T) {
	first := &combination{score: big.NewInt(10), hops: 2}
	fewer := &combination{score: big.NewInt(10), hops: 1}
	same := &combination{score: big.NewInt(10), hops: 2}
	higher := &combination{score: big.NewInt(11), hops: 4}

	assert.True(t, better(first, nil))
	assert.True(t, better(fewer, first))
	assert.False(t, better(same, first))
	assert.True(t, better(higher, fewer))
}

func TestBestTradeCanceled(t *testing.T) {
	pools := []model.Pool{v2("0x01", usdt, xtk, pow10(12), pow10(12))}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRouter(nil, nil).BestTrade(ctx, model.MustAmount(usdt, big.NewInt(1000)), xtk, model.ExactInput, pools, nil, grossOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRouteWeightsReconstructTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 3).Draw(t, "pools")
		pools := make([]model.Pool, 0, n)
		for i := 0; i < n; i++ {
			r0 := big.NewInt(rapid.Int64Range(1_000_000, 1<<50).Draw(t, "r0"))
			r1 := big.NewInt(rapid.Int64Range(1_000_000, 1<<50).Draw(t, "r1"))
			pool := v2(common.BigToAddress(big.NewInt(int64(i+1))).Hex(), usdt, xtk, r0, r1)
			pool.Fee = 2500
			pools = append(pools, pool)
		}
		opts := grossOptions()
		opts.MaxSplits = rapid.IntRange(1, 3).Draw(t, "maxSplits")
		opts.DistributionPercent = rapid.SampledFrom([]int{5, 10, 25, 50}).Draw(t, "step")
		exactOut := rapid.Bool().Draw(t, "exactOut")
		raw := big.NewInt(rapid.Int64Range(1, 1_000_000).Draw(t, "amount"))

		tradeType, amount, quote := model.ExactInput, model.MustAmount(usdt, raw), xtk
		if exactOut {
			tradeType, amount, quote = model.ExactOutput, model.MustAmount(xtk, raw), usdt
		}

		trade, err := NewRouter(nil, nil).BestTrade(context.Background(), amount, quote, tradeType, pools, nil, opts)
		if err != nil {
			if errors.Is(err, model.ErrNoRouteFound) {
				return
			}
			t.Fatalf("best trade: %v", err)
		}

		sum := new(big.Int)
		var percent uint32
		for _, route := range trade.Routes {
			percent += route.Percent
			if exactOut {
				sum.Add(sum, route.OutputAmount.Raw())
			} else {
				sum.Add(sum, route.InputAmount.Raw())
			}
		}
		if percent != 100 {
			t.Fatalf("percents sum to %d", percent)
		}
		if sum.Cmp(raw) != 0 {
			t.Fatalf("route amounts sum to %s, want %s", sum, raw)
		}
		if len(trade.Routes) > opts.MaxSplits {
			t.Fatalf("%d routes exceed max splits %d", len(trade.Routes), opts.MaxSplits)
		}
	})
}
