package router

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

type search struct {
	ctx       context.Context
	tradeType model.TradeType
	total     *big.Int
	step      int
	maxSplits int
	routes    []candidate
	// gasCost values gas units in the score currency; nil scores gross.
	// It must not decrease as units grow.
	gasCost func(uint64) *big.Int

	// table[i][k] is route i's quote for share((k+1)*step), nil when the
	// route cannot carry it.
	table [][]*big.Int
	// bound[s][l][k] is the best value reachable with at most l distinct
	// routes from s onward covering k steps, ignoring pool overlap. Nil
	// means unreachable.
	bound [][][]*big.Int
	// floor is the score of a known feasible combination; nothing scoring
	// below it is explored.
	floor *big.Int
	costs map[uint64]*big.Int
	// expanded counts legs pushed during the walk.
	expanded int
}

func newSearch(ctx context.Context, tradeType model.TradeType, total *big.Int, opts Options) *search {
	return &search{
		ctx:       ctx,
		tradeType: tradeType,
		total:     total,
		step:      opts.DistributionPercent,
		maxSplits: opts.MaxSplits,
		costs:     make(map[uint64]*big.Int),
	}
}

// leg is one route of a combination with its share of the amount.
type leg struct {
	route   int
	percent int
	amount  *big.Int
	quote   *big.Int
}

type combination struct {
	legs  []leg
	quote *big.Int
	gas   uint64
	cost  *big.Int
	score *big.Int
	hops  int
}

// scoreCurrency is the side of the trade the score is expressed in.
func (s *search) scoreCurrency(in, out model.Currency) model.Currency {
	if s.tradeType == model.ExactOutput {
		return in
	}
	return out
}

func (s *search) steps() int { return 100 / s.step }

// value is a table quote signed so that larger is better.
func (s *search) value(q *big.Int) *big.Int {
	if s.tradeType == model.ExactOutput {
		return new(big.Int).Neg(q)
	}
	return new(big.Int).Set(q)
}

func (s *search) cost(gas uint64) *big.Int {
	if s.gasCost == nil {
		return new(big.Int)
	}
	if c, ok := s.costs[gas]; ok {
		return c
	}
	c := s.gasCost(gas)
	if c == nil {
		c = new(big.Int)
	}
	s.costs[gas] = c
	return c
}

func (s *search) price(route candidate, amount *big.Int) *big.Int {
	current := new(big.Int).Set(amount)
	var err error
	if s.tradeType == model.ExactOutput {
		for i := len(route.pools) - 1; i >= 0; i-- {
			current, err = dex.AmountIn(route.pools[i], route.path[i].TokenAddress(), current)
			if err != nil || current.Sign() <= 0 {
				return nil
			}
		}
		return current
	}
	for i, pool := range route.pools {
		current, err = dex.AmountOut(pool, route.path[i].TokenAddress(), current)
		if err != nil || current.Sign() <= 0 {
			return nil
		}
	}
	return current
}

func (s *search) share(percent int) *big.Int {
	out := new(big.Int).Mul(s.total, big.NewInt(int64(percent)))
	return out.Quo(out, big.NewInt(100))
}

// rankRoutes orders routes by their full-amount quote, best first, and keeps
// at most limit. Routes that cannot carry the full amount rank last in
// enumeration order.
func (s *search) rankRoutes(routes []candidate, limit int) []candidate {
	type ranked struct {
		idx   int
		quote *big.Int
	}
	items := make([]ranked, len(routes))
	for i := range routes {
		items[i] = ranked{idx: i, quote: s.price(routes[i], s.total)}
	}
	sort.SliceStable(items, func(a, b int) bool {
		qa, qb := items[a].quote, items[b].quote
		switch {
		case qa == nil || qb == nil:
			return qa != nil && qb == nil
		case qa.Cmp(qb) != 0:
			if s.tradeType == model.ExactOutput {
				return qa.Cmp(qb) < 0
			}
			return qa.Cmp(qb) > 0
		default:
			return routes[items[a].idx].hops() < routes[items[b].idx].hops()
		}
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]candidate, len(items))
	for i, item := range items {
		out[i] = routes[item.idx]
	}
	return out
}

// prepare prices every route at every step once and derives the pruning
// bounds from that table.
func (s *search) prepare() error {
	n, k := len(s.routes), s.steps()
	s.table = make([][]*big.Int, n)
	for i := range s.routes {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		s.table[i] = make([]*big.Int, k)
		for j := 0; j < k; j++ {
			amount := s.share((j + 1) * s.step)
			if amount.Sign() <= 0 {
				continue
			}
			s.table[i][j] = s.price(s.routes[i], amount)
		}
	}

	s.bound = make([][][]*big.Int, n+1)
	for r := n; r >= 0; r-- {
		s.bound[r] = make([][]*big.Int, s.maxSplits+1)
		for l := 0; l <= s.maxSplits; l++ {
			s.bound[r][l] = make([]*big.Int, k+1)
			s.bound[r][l][0] = new(big.Int)
			if r == n || l == 0 {
				continue
			}
			for steps := 1; steps <= k; steps++ {
				best := s.bound[r+1][l][steps]
				for j := 1; j <= steps; j++ {
					q, rest := s.table[r][j-1], s.bound[r+1][l-1][steps-j]
					if q == nil || rest == nil {
						continue
					}
					v := s.value(q)
					v.Add(v, rest)
					if best == nil || v.Cmp(best) > 0 {
						best = v
					}
				}
				s.bound[r][l][steps] = best
			}
		}
	}
	s.seedFloor()
	return s.ctx.Err()
}

// seedFloor follows the bound table to its argmax. When those routes happen
// to be pool-disjoint the combination is feasible and its score becomes the
// floor for the walk.
func (s *search) seedFloor() {
	k := s.steps()
	if s.bound[0][s.maxSplits][k] == nil {
		return
	}
	var legs []leg
	used := make(map[model.PoolKey]struct{})
	r, l, steps := 0, s.maxSplits, k
	for steps > 0 && r < len(s.routes) {
		want := s.bound[r][l][steps]
		taken := 0
		if skip := s.bound[r+1][l][steps]; skip == nil || skip.Cmp(want) != 0 {
			for j := 1; j <= steps; j++ {
				q, rest := s.table[r][j-1], s.bound[r+1][l-1][steps-j]
				if q == nil || rest == nil {
					continue
				}
				if v := s.value(q); v.Add(v, rest).Cmp(want) == 0 {
					taken = j
					break
				}
			}
			if taken == 0 {
				return
			}
		}
		if taken > 0 {
			if s.routes[r].sharesPool(used) {
				return
			}
			for _, p := range s.routes[r].pools {
				used[p.Key()] = struct{}{}
			}
			legs = append(legs, leg{route: r, percent: taken * s.step})
			steps -= taken
			l--
		}
		r++
	}
	if steps != 0 {
		return
	}
	if c := s.evaluate(legs); c != nil {
		s.floor = c.score
	}
}

// run enumerates combinations of up to maxSplits pool-disjoint routes whose
// percents sum to 100 and returns the best one. Branches whose bound cannot
// reach the best score found so far are cut; equal bounds survive while they
// could still win on hops.
func (s *search) run() (*combination, error) {
	if err := s.prepare(); err != nil {
		return nil, err
	}

	var best *combination
	var walkErr error
	legs := make([]leg, 0, s.maxSplits)
	used := make(map[model.PoolKey]struct{})
	partial := new(big.Int)
	var gas uint64 = dex.GasSwapBase
	hops := 0

	var walk func(start, remaining int)
	walk = func(start, remaining int) {
		for i := start; i < len(s.routes) && walkErr == nil; i++ {
			route := s.routes[i]
			if route.sharesPool(used) {
				continue
			}
			if err := s.ctx.Err(); err != nil {
				walkErr = err
				return
			}
			for pct := s.step; pct <= remaining; pct += s.step {
				if pct < remaining && len(legs)+1 >= s.maxSplits {
					continue
				}
				q := s.table[i][pct/s.step-1]
				if q == nil {
					continue
				}
				rest := s.bound[i+1][s.maxSplits-len(legs)-1][(remaining-pct)/s.step]
				if rest == nil {
					continue
				}
				bound := s.value(q)
				bound.Add(bound, partial).Add(bound, rest).Sub(bound, s.cost(gas+route.gas))
				minHops := hops + route.hops()
				if pct < remaining {
					minHops++
				}
				if s.prune(bound, minHops, best) {
					continue
				}

				s.expanded++
				legs = append(legs, leg{route: i, percent: pct})
				if pct == remaining {
					if c := s.evaluate(legs); c != nil && better(c, best) {
						best = c
					}
				} else {
					for _, p := range route.pools {
						used[p.Key()] = struct{}{}
					}
					v := s.value(q)
					partial.Add(partial, v)
					gas += route.gas
					hops += route.hops()
					walk(i+1, remaining-pct)
					hops -= route.hops()
					gas -= route.gas
					partial.Sub(partial, v)
					for _, p := range route.pools {
						delete(used, p.Key())
					}
				}
				legs = legs[:len(legs)-1]
			}
		}
	}
	walk(0, 100)
	if walkErr != nil {
		return nil, walkErr
	}
	if best == nil {
		return nil, nil
	}
	return s.settle(best)
}

func (s *search) prune(bound *big.Int, minHops int, best *combination) bool {
	if s.floor != nil && bound.Cmp(s.floor) < 0 {
		return true
	}
	if best == nil {
		return false
	}
	cmp := bound.Cmp(best.score)
	return cmp < 0 || (cmp == 0 && minHops >= best.hops)
}

// evaluate scores a complete combination from the quote table.
func (s *search) evaluate(legs []leg) *combination {
	c := &combination{legs: make([]leg, len(legs)), quote: new(big.Int), gas: dex.GasSwapBase}
	for i, l := range legs {
		q := s.table[l.route][l.percent/s.step-1]
		if q == nil {
			return nil
		}
		c.legs[i] = leg{route: l.route, percent: l.percent, amount: s.share(l.percent), quote: q}
		c.quote.Add(c.quote, q)
		c.gas += s.routes[l.route].gas
		c.hops += s.routes[l.route].hops()
	}

	c.cost = s.cost(c.gas)
	c.score = s.value(c.quote)
	c.score.Sub(c.score, c.cost)
	return c
}

// settle hands the integer remainder of the percent shares to one leg, the
// last one that can still be priced with it, so leg amounts add up to the
// total exactly.
func (s *search) settle(c *combination) (*combination, error) {
	assigned := new(big.Int)
	for _, l := range c.legs {
		assigned.Add(assigned, l.amount)
	}
	remainder := new(big.Int).Sub(s.total, assigned)
	if remainder.Sign() == 0 {
		return c, nil
	}
	for i := len(c.legs) - 1; i >= 0; i-- {
		l := c.legs[i]
		amount := new(big.Int).Add(l.amount, remainder)
		q := s.price(s.routes[l.route], amount)
		if q == nil {
			continue
		}
		settled := *c
		settled.legs = append([]leg(nil), c.legs...)
		settled.legs[i] = leg{route: l.route, percent: l.percent, amount: amount, quote: q}
		settled.quote = new(big.Int).Sub(c.quote, l.quote)
		settled.quote.Add(settled.quote, q)
		settled.score = s.value(settled.quote)
		settled.score.Sub(settled.score, settled.cost)
		return &settled, nil
	}
	return nil, fmt.Errorf("%w: no leg carries the %s remainder", model.ErrNoRouteFound, remainder)
}

// better reports whether c beats best: strictly higher score, then fewer
// hops. Ties keep the earlier combination.
func better(c, best *combination) bool {
	if best == nil {
		return true
	}
	if cmp := c.score.Cmp(best.score); cmp != 0 {
		return cmp > 0
	}
	return c.hops < best.hops
}

func (s *search) buildTrade(best *combination, in, out model.Currency) (*model.Trade, error) {
	trade := &model.Trade{
		Type:           s.tradeType,
		Routes:         make([]model.Route, 0, len(best.legs)),
		GasEstimate:    best.gas,
		GasCostInQuote: model.ZeroAmount(s.scoreCurrency(in, out)),
	}
	if best.cost != nil && best.cost.Sign() > 0 {
		cost, err := model.NewAmount(s.scoreCurrency(in, out), best.cost)
		if err != nil {
			return nil, err
		}
		trade.GasCostInQuote = cost
	}

	totalIn, totalOut := new(big.Int), new(big.Int)
	for _, l := range best.legs {
		route := s.routes[l.route]
		inRaw, outRaw := l.amount, l.quote
		if s.tradeType == model.ExactOutput {
			inRaw, outRaw = l.quote, l.amount
		}
		inAmount, err := model.NewAmount(in, inRaw)
		if err != nil {
			return nil, fmt.Errorf("route input: %w", err)
		}
		outAmount, err := model.NewAmount(out, outRaw)
		if err != nil {
			return nil, fmt.Errorf("route output: %w", err)
		}
		totalIn.Add(totalIn, inRaw)
		totalOut.Add(totalOut, outRaw)
		trade.Routes = append(trade.Routes, model.Route{
			Pools:        append([]model.Pool(nil), route.pools...),
			Path:         append([]model.Currency(nil), route.path...),
			Percent:      uint32(l.percent),
			InputAmount:  inAmount,
			OutputAmount: outAmount,
			GasEstimate:  route.gas,
		})
	}
	trade.InputAmount = model.MustAmount(in, totalIn)
	trade.OutputAmount = model.MustAmount(out, totalOut)
	return trade, nil
}
