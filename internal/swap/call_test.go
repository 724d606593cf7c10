package swap

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

var (
	usdt       = model.NewToken(42793, common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A"), 6, "USDT")
	usdc       = model.NewToken(42793, common.HexToAddress("0x796Ea11Fa2dD751eD01b53C372fFDB4AAa8f00F9"), 6, "USDC")
	wxtz       = model.NewToken(42793, common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb"), 18, "WXTZ")
	xtz        = model.NewNative(42793, 18, "XTZ", wxtz.Address)
	routerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	user       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func pool(protocol model.Protocol, addr string, t0, t1 model.Currency) model.Pool {
	return model.Pool{Protocol: protocol, Address: common.HexToAddress(addr), Token0: t0, Token1: t1, Fee: 500}
}

func singleRouteTrade(tradeType model.TradeType, pools []model.Pool, path []model.Currency, in, out int64) *model.Trade {
	inAmount := model.MustAmount(path[0], big.NewInt(in))
	outAmount := model.MustAmount(path[len(path)-1], big.NewInt(out))
	return &model.Trade{
		Type: tradeType,
		Routes: []model.Route{{
			Pools:        pools,
			Path:         path,
			Percent:      100,
			InputAmount:  inAmount,
			OutputAmount: outAmount,
		}},
		InputAmount:  inAmount,
		OutputAmount: outAmount,
	}
}

func options(bps uint32) Options {
	return Options{Router: routerAddr, Recipient: user, Slippage: model.NewBips(bps), Deadline: time.Unix(1_700_000_000, 0)}
}

type decodedCall struct {
	method string
	args   []interface{}
}

func decode(t *testing.T, call *model.SwapCall) (*big.Int, []decodedCall) {
	t.Helper()
	parsed, err := dex.SmartRouterABI()
	require.NoError(t, err)

	outer, err := parsed.Methods["multicall"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	deadline := outer[0].(*big.Int)
	inner := outer[1].([][]byte)

	out := make([]decodedCall, 0, len(inner))
	for _, data := range inner {
		method, err := parsed.MethodById(data[:4])
		require.NoError(t, err)
		args, err := method.Inputs.Unpack(data[4:])
		require.NoError(t, err)
		out = append(out, decodedCall{method: method.Name, args: args})
	}
	return deadline, out
}

func TestBuildCallRejectsEmptyTrade(t *testing.T) {
	_, err := BuildCall(&model.Trade{}, options(25))
	assert.True(t, errors.Is(err, model.ErrInvalidTradeState))

	_, err = BuildCall(nil, options(25))
	assert.True(t, errors.Is(err, model.ErrInvalidTradeState))
}

func TestBuildCallRejectsBadTolerance(t *testing.T) {
	trade := singleRouteTrade(model.ExactInput, []model.Pool{pool(model.ProtocolV2, "0x01", usdt, wxtz)}, []model.Currency{usdt, wxtz}, 4_000_000, 1_000)
	_, err := BuildCall(trade, options(10_000))
	assert.True(t, errors.Is(err, model.ErrInvalidTolerance))
}

func TestBuildCallV2ExactInput(t *testing.T) {
	trade := singleRouteTrade(model.ExactInput, []model.Pool{pool(model.ProtocolV2, "0x01", usdt, wxtz)}, []model.Currency{usdt, wxtz}, 4_000_000, 1_000_000)

	call, err := BuildCall(trade, options(25))
	require.NoError(t, err)
	assert.Equal(t, routerAddr, call.To)
	assert.Equal(t, int64(0), call.Value.Int64())
	assert.Equal(t, int64(997_500), call.Bound.Raw().Int64())
	assert.True(t, call.Bound.Currency.Equal(wxtz))

	deadline, calls := decode(t, call)
	assert.Equal(t, int64(1_700_000_000), deadline.Int64())
	require.Len(t, calls, 1)
	assert.Equal(t, "swapExactTokensForTokens", calls[0].method)
	assert.Equal(t, int64(4_000_000), calls[0].args[0].(*big.Int).Int64())
	assert.Equal(t, int64(997_500), calls[0].args[1].(*big.Int).Int64())
	assert.Equal(t, []common.Address{usdt.Address, wxtz.Address}, calls[0].args[2])
	assert.Equal(t, user, calls[0].args[3])
}

func TestBuildCallNativeInput(t *testing.T) {
	trade := singleRouteTrade(model.ExactInput, []model.Pool{pool(model.ProtocolV3, "0x01", usdt, wxtz)}, []model.Currency{xtz, usdt}, 5_000, 4_000)

	call, err := BuildCall(trade, options(25))
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), call.Value.Int64())

	_, calls := decode(t, call)
	require.Len(t, calls, 1)
	assert.Equal(t, "exactInputSingle", calls[0].method)
}

func TestBuildCallNativeOutputUnwraps(t *testing.T) {
	trade := singleRouteTrade(model.ExactInput, []model.Pool{pool(model.ProtocolV3, "0x01", usdt, wxtz)}, []model.Currency{usdt, xtz}, 4_000_000, 10_000)

	call, err := BuildCall(trade, options(100))
	require.NoError(t, err)

	_, calls := decode(t, call)
	require.Len(t, calls, 2)
	assert.Equal(t, "exactInputSingle", calls[0].method)
	assert.Equal(t, "unwrapWETH9", calls[1].method)
	assert.Equal(t, int64(9_900), calls[1].args[0].(*big.Int).Int64())
	assert.Equal(t, user, calls[1].args[1])
}

func TestBuildCallExactOutputNativeInputRefunds(t *testing.T) {
	trade := singleRouteTrade(model.ExactOutput, []model.Pool{pool(model.ProtocolV2, "0x01", usdt, wxtz)}, []model.Currency{xtz, usdt}, 10_000, 4_000)

	call, err := BuildCall(trade, options(50))
	require.NoError(t, err)
	// value covers the maximum input
	assert.Equal(t, int64(10_050), call.Value.Int64())
	assert.True(t, call.Bound.Currency.Equal(xtz))

	_, calls := decode(t, call)
	require.Len(t, calls, 2)
	assert.Equal(t, "swapTokensForExactTokens", calls[0].method)
	assert.Equal(t, "refundETH", calls[1].method)
}

func TestBuildCallMixedRoute(t *testing.T) {
	pools := []model.Pool{
		pool(model.ProtocolV3, "0x01", usdt, usdc),
		pool(model.ProtocolV2, "0x02", usdc, wxtz),
	}
	path := []model.Currency{usdt, usdc, wxtz}

	trade := singleRouteTrade(model.ExactInput, pools, path, 4_000_000, 1_000_000)
	call, err := BuildCall(trade, options(25))
	require.NoError(t, err)

	_, calls := decode(t, call)
	require.Len(t, calls, 2)
	assert.Equal(t, "exactInputSingle", calls[0].method)
	assert.Equal(t, "swapExactTokensForTokens", calls[1].method)
	// the second leg spends the router balance and carries the bound
	assert.Equal(t, int64(0), calls[1].args[0].(*big.Int).Int64())
	assert.Equal(t, int64(997_500), calls[1].args[1].(*big.Int).Int64())

	exactOut := singleRouteTrade(model.ExactOutput, pools, path, 4_000_000, 1_000_000)
	_, err = BuildCall(exactOut, options(25))
	assert.True(t, errors.Is(err, model.ErrInvalidTradeState))
}

func TestBuildCallV3MultiHopPath(t *testing.T) {
	pools := []model.Pool{
		pool(model.ProtocolV3, "0x01", usdt, usdc),
		pool(model.ProtocolV3, "0x02", usdc, wxtz),
	}
	trade := singleRouteTrade(model.ExactOutput, pools, []model.Currency{usdt, usdc, wxtz}, 4_000_000, 1_000_000)

	call, err := BuildCall(trade, options(25))
	require.NoError(t, err)
	_, calls := decode(t, call)
	require.Len(t, calls, 1)
	assert.Equal(t, "exactOutput", calls[0].method)
}

func TestBoundMonotonicInTolerance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.Int64Range(1, 1<<50).Draw(t, "in")
		out := rapid.Int64Range(1, 1<<50).Draw(t, "out")
		low := rapid.Uint32Range(0, 9_998).Draw(t, "low")
		high := rapid.Uint32Range(low, 9_999).Draw(t, "high")
		exactOut := rapid.Bool().Draw(t, "exactOut")

		tradeType := model.ExactInput
		if exactOut {
			tradeType = model.ExactOutput
		}
		trade := singleRouteTrade(tradeType, []model.Pool{pool(model.ProtocolV2, "0x01", usdt, wxtz)}, []model.Currency{usdt, wxtz}, in, out)

		a, err := BuildCall(trade, options(low))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		b, err := BuildCall(trade, options(high))
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		cmp := a.Bound.Raw().Cmp(b.Bound.Raw())
		if !exactOut && cmp < 0 {
			t.Fatalf("min out grew with tolerance: %s -> %s", a.Bound.Raw(), b.Bound.Raw())
		}
		if exactOut && cmp > 0 {
			t.Fatalf("max in shrank with tolerance: %s -> %s", a.Bound.Raw(), b.Bound.Raw())
		}
		if !exactOut && a.Bound.Raw().Cmp(big.NewInt(out)) > 0 {
			t.Fatalf("min out %s above quoted %d", a.Bound.Raw(), out)
		}
	})
}
