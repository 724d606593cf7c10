package swap

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

// Router recipient placeholders resolved on chain.
var (
	MsgSender   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// Options fixes where the swap goes and how much price movement it tolerates.
type Options struct {
	Router    common.Address
	Recipient common.Address
	Slippage  model.Percent
	Deadline  time.Time
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountOut         *big.Int
	AmountInMaximum   *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

type exactOutputParams struct {
	Path            []byte
	Recipient       common.Address
	AmountOut       *big.Int
	AmountInMaximum *big.Int
}

// BuildCall encodes trade as a single router multicall bounded by the
// slippage tolerance. The trade is not modified.
func BuildCall(trade *model.Trade, opts Options) (*model.SwapCall, error) {
	if trade == nil || len(trade.Routes) == 0 {
		return nil, fmt.Errorf("%w: trade has no routes", model.ErrInvalidTradeState)
	}
	if err := opts.Slippage.ValidateTolerance(); err != nil {
		return nil, err
	}
	if trade.OutputAmount.IsZero() || trade.InputAmount.IsZero() {
		return nil, fmt.Errorf("%w: zero trade amount", model.ErrInvalidTradeState)
	}
	if opts.Router == (common.Address{}) {
		return nil, fmt.Errorf("%w: router address missing", model.ErrInvalidTradeState)
	}
	parsed, err := dex.SmartRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}

	inCurrency := trade.InputAmount.Currency
	outCurrency := trade.OutputAmount.Currency
	recipient := opts.Recipient
	if recipient == (common.Address{}) {
		recipient = MsgSender
	}
	swapRecipient := recipient
	if outCurrency.Native {
		swapRecipient = AddressThis
	}

	b := &builder{abi: parsed, exactIn: trade.Type == model.ExactInput, recipient: swapRecipient}
	bound := new(big.Int)
	spent := new(big.Int)
	for i, route := range trade.Routes {
		if len(route.Pools) == 0 || len(route.Path) != len(route.Pools)+1 {
			return nil, fmt.Errorf("%w: route %d is malformed", model.ErrInvalidTradeState, i)
		}
		var amount, limit *big.Int
		if b.exactIn {
			amount = route.InputAmount.Raw()
			limit = opts.Slippage.ApplyDown(route.OutputAmount.Raw())
			spent.Add(spent, amount)
		} else {
			amount = route.OutputAmount.Raw()
			limit = opts.Slippage.ApplyUp(route.InputAmount.Raw())
			spent.Add(spent, limit)
		}
		bound.Add(bound, limit)
		if err := b.route(route, amount, limit); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
	}

	if outCurrency.Native {
		unwrapMin := bound
		if !b.exactIn {
			unwrapMin = trade.OutputAmount.Raw()
		}
		if err := b.add("unwrapWETH9", unwrapMin, recipient); err != nil {
			return nil, err
		}
	}
	if inCurrency.Native && !b.exactIn {
		if err := b.add("refundETH"); err != nil {
			return nil, err
		}
	}

	data, err := parsed.Pack("multicall", big.NewInt(opts.Deadline.Unix()), b.calls)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}

	value := new(big.Int)
	if inCurrency.Native {
		value = spent
	}
	boundCurrency := outCurrency
	if !b.exactIn {
		boundCurrency = inCurrency
	}
	boundAmount, err := model.NewAmount(boundCurrency, bound)
	if err != nil {
		return nil, err
	}
	return &model.SwapCall{To: opts.Router, Data: data, Value: value, Bound: boundAmount}, nil
}

type builder struct {
	abi       abi.ABI
	exactIn   bool
	recipient common.Address
	calls     [][]byte
}

func (b *builder) add(method string, args ...interface{}) error {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	b.calls = append(b.calls, data)
	return nil
}

// route encodes one route. amount is the exact side, limit the slippage bound.
func (b *builder) route(route model.Route, amount, limit *big.Int) error {
	segments := splitByProtocol(route)
	if len(segments) > 1 && !b.exactIn {
		return fmt.Errorf("%w: mixed-protocol route cannot be exact output", model.ErrInvalidTradeState)
	}

	for i, seg := range segments {
		last := i == len(segments)-1
		segAmount, segLimit, to := amount, limit, b.recipient
		if i > 0 {
			// chained segments spend what the router holds
			segAmount = new(big.Int)
		}
		if !last {
			segLimit = new(big.Int)
			to = AddressThis
		}
		if err := b.segment(seg, segAmount, segLimit, to); err != nil {
			return err
		}
	}
	return nil
}

type segment struct {
	protocol model.Protocol
	pools    []model.Pool
	tokens   []common.Address
}

func splitByProtocol(route model.Route) []segment {
	var out []segment
	for i, pool := range route.Pools {
		if len(out) == 0 || out[len(out)-1].protocol != pool.Protocol {
			out = append(out, segment{protocol: pool.Protocol, tokens: []common.Address{route.Path[i].TokenAddress()}})
		}
		seg := &out[len(out)-1]
		seg.pools = append(seg.pools, pool)
		seg.tokens = append(seg.tokens, route.Path[i+1].TokenAddress())
	}
	return out
}

func (b *builder) segment(seg segment, amount, limit *big.Int, to common.Address) error {
	switch seg.protocol {
	case model.ProtocolV2:
		if b.exactIn {
			return b.add("swapExactTokensForTokens", amount, limit, seg.tokens, to)
		}
		return b.add("swapTokensForExactTokens", amount, limit, seg.tokens, to)
	case model.ProtocolV3:
		if len(seg.pools) == 1 {
			fee := new(big.Int).SetUint64(uint64(seg.pools[0].Fee))
			if b.exactIn {
				return b.add("exactInputSingle", exactInputSingleParams{
					TokenIn:           seg.tokens[0],
					TokenOut:          seg.tokens[1],
					Fee:               fee,
					Recipient:         to,
					AmountIn:          amount,
					AmountOutMinimum:  limit,
					SqrtPriceLimitX96: new(big.Int),
				})
			}
			return b.add("exactOutputSingle", exactOutputSingleParams{
				TokenIn:           seg.tokens[0],
				TokenOut:          seg.tokens[1],
				Fee:               fee,
				Recipient:         to,
				AmountOut:         amount,
				AmountInMaximum:   limit,
				SqrtPriceLimitX96: new(big.Int),
			})
		}
		fees := make([]uint32, len(seg.pools))
		for i, p := range seg.pools {
			fees[i] = p.Fee
		}
		path, err := dex.EncodeV3Path(seg.tokens, fees, !b.exactIn)
		if err != nil {
			return err
		}
		if b.exactIn {
			return b.add("exactInput", exactInputParams{Path: path, Recipient: to, AmountIn: amount, AmountOutMinimum: limit})
		}
		return b.add("exactOutput", exactOutputParams{Path: path, Recipient: to, AmountOut: amount, AmountInMaximum: limit})
	default:
		return fmt.Errorf("%w: unsupported protocol %s", model.ErrInvalidTradeState, seg.protocol)
	}
}
