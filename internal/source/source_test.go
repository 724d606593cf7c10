package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

var (
	usdt = model.NewToken(42793, common.HexToAddress("0x2C03058C8AFC06713be23e58D2febC8337dbfE6A"), 6, "USDT")
	wxtz = model.NewToken(42793, common.HexToAddress("0xc9B53AB2679f573e480d01e0f49e2B5CFB7a3EAb"), 18, "WXTZ")
	usdc = model.NewToken(42793, common.HexToAddress("0x796Ea11Fa2dD751eD01b53C372fFDB4AAa8f00F9"), 6, "USDC")
)

type staticRegistry map[common.Address]model.Currency

func (r staticRegistry) TokenByAddress(address common.Address) (model.Currency, bool) {
	c, ok := r[address]
	return c, ok
}

func registry() staticRegistry {
	return staticRegistry{usdt.Address: usdt, wxtz.Address: wxtz, usdc.Address: usdc}
}

func TestCandidatePairs(t *testing.T) {
	bases := []common.Address{wxtz.Address, usdc.Address}

	direct := CandidatePairs(usdt.Address, wxtz.Address, bases, 1)
	assert.Equal(t, []TokenPair{NewTokenPair(usdt.Address, wxtz.Address)}, direct)

	// usdt/wxtz, usdt/usdc, usdc/wxtz
	viaBases := CandidatePairs(usdt.Address, wxtz.Address, bases, 2)
	assert.Len(t, viaBases, 3)

	withBasePairs := CandidatePairs(usdt.Address, wxtz.Address, bases, 3)
	assert.Len(t, withBasePairs, 3)

	for _, pair := range viaBases {
		assert.True(t, bytes.Compare(pair.Token0.Bytes(), pair.Token1.Bytes()) < 0)
	}
	assert.Empty(t, CandidatePairs(usdt.Address, usdt.Address, nil, 1))
}

// fakeChain answers factory and pair reads for one V2 pair.
type fakeChain struct {
	factory common.Address
	pair    common.Address
	tokens  TokenPair
	r0, r1  *big.Int
}

func (f *fakeChain) Aggregate(_ context.Context, calls []dex.Call) ([]dex.Result, error) {
	factoryABI, _ := dex.V2FactoryABI()
	pairABI, _ := dex.V2PairABI()
	out := make([]dex.Result, len(calls))
	for i, call := range calls {
		switch {
		case call.Target == f.factory:
			method := factoryABI.Methods["getPair"]
			args, err := method.Inputs.Unpack(call.CallData[4:])
			if err != nil {
				return nil, err
			}
			found := common.Address{}
			if NewTokenPair(args[0].(common.Address), args[1].(common.Address)) == f.tokens {
				found = f.pair
			}
			data, _ := method.Outputs.Pack(found)
			out[i] = dex.Result{Success: true, ReturnData: data}
		case call.Target == f.pair:
			data, _ := pairABI.Methods["getReserves"].Outputs.Pack(f.r0, f.r1, uint32(0))
			out[i] = dex.Result{Success: true, ReturnData: data}
		}
	}
	return out, nil
}

func TestOnChainV2QueryPools(t *testing.T) {
	chain := &fakeChain{
		factory: common.HexToAddress("0xf2"),
		pair:    common.HexToAddress("0xabc"),
		tokens:  NewTokenPair(usdt.Address, wxtz.Address),
		r0:      big.NewInt(5_000_000),
		r1:      big.NewInt(7_000_000),
	}
	src := NewOnChainV2(chain, chain.factory, 2500, []common.Address{usdc.Address}, registry(), nil)

	pools, err := src.QueryPools(context.Background(), usdt, wxtz, 2)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	pool := pools[0]
	assert.Equal(t, model.ProtocolV2, pool.Protocol)
	assert.Equal(t, chain.pair, pool.Address)
	assert.Equal(t, chain.tokens.Token0, pool.Token0.Address)
	assert.Equal(t, uint32(2500), pool.Fee)
	assert.Equal(t, int64(5_000_000), pool.Reserve0.Int64())
}

func TestOnChainRequiresFactory(t *testing.T) {
	src := NewOnChainV3(nil, common.Address{}, []uint32{500}, nil, registry(), nil)
	_, err := src.QueryPools(context.Background(), usdt, wxtz, 1)
	assert.ErrorContains(t, err, "factory")
}

// graphRequest mirrors the JSON body machinebox/graphql posts.
type graphRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func TestSubgraphV2QueryPools(t *testing.T) {
	var gotTokens []interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphRequest
		_ = json.Unmarshal(body, &req)
		gotTokens, _ = req.Variables["tokens"].([]interface{})
		assert.True(t, strings.Contains(req.Query, "pairs("))

		_, _ = w.Write([]byte(`{"data":{"pairs":[
			{"id":"0x0000000000000000000000000000000000000abc","reserve0":"1.5","reserve1":"2.25",
			 "token0":{"id":"0x2c03058c8afc06713be23e58d2febc8337dbfe6a","symbol":"USDT","name":"","decimals":"6"},
			 "token1":{"id":"0xc9b53ab2679f573e480d01e0f49e2b5cfb7a3eab","symbol":"WXTZ","name":"","decimals":"18"}},
			{"id":"0x0000000000000000000000000000000000000def","reserve0":"1","reserve1":"1",
			 "token0":{"id":"0x00000000000000000000000000000000000000d1","symbol":"D1","name":"","decimals":"18"},
			 "token1":{"id":"0x00000000000000000000000000000000000000d2","symbol":"D2","name":"","decimals":"18"}}
		]}}`))
	}))
	defer server.Close()

	src := NewSubgraphV2(NewGraphClient(server.URL, 0), 2500, 50, nil, registry(), nil)
	pools, err := src.QueryPools(context.Background(), usdt, wxtz, 1)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	assert.Len(t, gotTokens, 2)
	assert.Equal(t, int64(1_500_000), pools[0].Reserve0.Int64())
	want, _ := new(big.Int).SetString("2250000000000000000", 10)
	assert.Equal(t, want, pools[0].Reserve1)
	assert.Equal(t, "USDT", pools[0].Token0.Symbol)
}

func TestSubgraphV3QueryPoolsUnknownToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"pools":[
			{"id":"0x0000000000000000000000000000000000000abc","feeTier":"500","liquidity":"1000000","sqrtPrice":"79228162514264337593543950336","tick":"0",
			 "token0":{"id":"0x00000000000000000000000000000000000000e1","symbol":"NEW","name":"New","decimals":"9"},
			 "token1":{"id":"0xc9b53ab2679f573e480d01e0f49e2b5cfb7a3eab","symbol":"WXTZ","name":"","decimals":"18"}}
		]}}`))
	}))
	defer server.Close()

	newToken := model.NewToken(42793, common.HexToAddress("0xe1"), 9, "NEW")
	src := NewSubgraphV3(NewGraphClient(server.URL, 0), 50, nil, registry(), nil)
	pools, err := src.QueryPools(context.Background(), newToken, wxtz, 1)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, uint32(500), pools[0].Fee)
	assert.Equal(t, uint8(9), pools[0].Token0.Decimals)
}

func TestGraphClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad field"}]}`))
	}))
	defer server.Close()

	var out struct{}
	err := NewGraphClient(server.URL+"/down", 0).Query(context.Background(), "{}", nil, &out)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)

	err = NewGraphClient(server.URL, 0).Query(context.Background(), "{}", nil, &out)
	assert.ErrorContains(t, err, "bad field")
}

func TestDecimalToRaw(t *testing.T) {
	got, err := decimalToRaw("0.1234567", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), got.Int64())

	_, err = decimalToRaw("x", 6)
	assert.Error(t, err)
}

func TestGraphClientRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, 0)
	client.RetryDelay = time.Millisecond
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Query(context.Background(), "{}", nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGraphClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, 0)
	client.RetryDelay = time.Millisecond
	var out struct{}
	assert.Error(t, client.Query(context.Background(), "{}", nil, &out))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGraphClientCapsResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"pad":"` + strings.Repeat("x", 512) + `"}}`))
	}))
	defer server.Close()

	client := NewGraphClient(server.URL, 0)
	client.MaxBody = 128
	var out struct{}
	err := client.Query(context.Background(), "{}", nil, &out)
	assert.ErrorContains(t, err, "exceeds 128 bytes")
}

func TestGraphClientReportsTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(`{"data":`))
	}))
	defer server.Close()

	var out struct{}
	err := NewGraphClient(server.URL, 0).Query(context.Background(), "{}", nil, &out)
	assert.ErrorContains(t, err, "read subgraph response")
}
