package model

import (
	"fmt"
	"strings"
)

// TradeType is the direction fixed by the caller.
type TradeType uint8

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "exact_output"
	}
	return "exact_input"
}

// ParseTradeType accepts "exact-input" or "exact-output".
func ParseTradeType(value string) (TradeType, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-") {
	case "exact-input", "exact-in", "":
		return ExactInput, nil
	case "exact-output", "exact-out":
		return ExactOutput, nil
	default:
		return 0, fmt.Errorf("unsupported trade type: %s", value)
	}
}

// Route is an ordered pool path carrying a share of the trade.
type Route struct {
	Pools []Pool
	// Path lists the currencies visited, len(Path) == len(Pools)+1.
	Path         []Currency
	Percent      uint32
	InputAmount  CurrencyAmount
	OutputAmount CurrencyAmount
	GasEstimate  uint64
}

func (r Route) Hops() int {
	return len(r.Pools)
}

// Protocols returns the distinct families used by the route, in path order.
func (r Route) Protocols() []Protocol {
	out := make([]Protocol, 0, 2)
	for _, pool := range r.Pools {
		if len(out) == 0 || out[len(out)-1] != pool.Protocol {
			out = append(out, pool.Protocol)
		}
	}
	return out
}

func (r Route) String() string {
	symbols := make([]string, 0, len(r.Path))
	for _, c := range r.Path {
		symbols = append(symbols, c.Symbol)
	}
	return fmt.Sprintf("%d%% %s", r.Percent, strings.Join(symbols, " -> "))
}

// Trade is the immutable result of a route search.
type Trade struct {
	Type         TradeType
	Routes       []Route
	InputAmount  CurrencyAmount
	OutputAmount CurrencyAmount
	GasEstimate  uint64
	// GasCostInQuote is the gas cost valued in the quote currency, zero when it
	// could not be priced or net scoring was off.
	GasCostInQuote CurrencyAmount
}

// TotalHops sums hops over all routes.
func (t *Trade) TotalHops() int {
	total := 0
	for _, r := range t.Routes {
		total += r.Hops()
	}
	return total
}
