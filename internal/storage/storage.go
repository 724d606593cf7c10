package storage

import (
	"context"
	"time"

	"swapRouter/internal/model"
)

// Journal records quotes and submissions.
type Journal interface {
	PutQuote(ctx context.Context, rec QuoteRecord) error
	PutSubmission(ctx context.Context, rec SubmissionRecord) error
}

// RouteRecord is the journal form of one route of a trade.
type RouteRecord struct {
	Percent   uint32   `json:"percent"`
	Path      []string `json:"path"`
	Pools     []string `json:"pools"`
	AmountIn  string   `json:"amount_in"`
	AmountOut string   `json:"amount_out"`
}

// QuoteRecord is one quote outcome. Error is set when the quote failed.
type QuoteRecord struct {
	Seq         uint64        `json:"seq"`
	At          time.Time     `json:"at"`
	ChainID     uint64        `json:"chain_id"`
	TradeType   string        `json:"trade_type"`
	TokenIn     string        `json:"token_in"`
	TokenOut    string        `json:"token_out"`
	AmountIn    string        `json:"amount_in,omitempty"`
	AmountOut   string        `json:"amount_out,omitempty"`
	GasEstimate uint64        `json:"gas_estimate,omitempty"`
	GasCost     string        `json:"gas_cost,omitempty"`
	Routes      []RouteRecord `json:"routes,omitempty"`
	Pools       int           `json:"pools"`
	Error       string        `json:"error,omitempty"`
}

// SubmissionRecord is one swap attempt.
type SubmissionRecord struct {
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
	ChainID  uint64    `json:"chain_id"`
	Router   string    `json:"router"`
	From     string    `json:"from"`
	Value    string    `json:"value"`
	GasLimit string    `json:"gas_limit,omitempty"`
	Bound    string    `json:"bound"`
	Handle   string    `json:"handle,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// NewQuoteRecord flattens trade for the journal. trade may be nil when the
// quote failed, in which case err carries the reason.
func NewQuoteRecord(seq uint64, at time.Time, in, out model.Currency, tradeType model.TradeType, pools int, trade *model.Trade, err error) QuoteRecord {
	rec := QuoteRecord{
		Seq:       seq,
		At:        at.UTC(),
		ChainID:   in.ChainID,
		TradeType: tradeType.String(),
		TokenIn:   in.String(),
		TokenOut:  out.String(),
		Pools:     pools,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if trade == nil {
		return rec
	}
	rec.AmountIn = trade.InputAmount.Raw().String()
	rec.AmountOut = trade.OutputAmount.Raw().String()
	rec.GasEstimate = trade.GasEstimate
	if trade.GasCostInQuote.Currency.Symbol != "" {
		rec.GasCost = trade.GasCostInQuote.Raw().String()
	}
	for _, r := range trade.Routes {
		rr := RouteRecord{
			Percent:   r.Percent,
			AmountIn:  r.InputAmount.Raw().String(),
			AmountOut: r.OutputAmount.Raw().String(),
		}
		for _, c := range r.Path {
			rr.Path = append(rr.Path, c.Symbol)
		}
		for _, p := range r.Pools {
			rr.Pools = append(rr.Pools, p.Key().String())
		}
		rec.Routes = append(rec.Routes, rr)
	}
	return rec
}
