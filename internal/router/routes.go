package router

import (
	"github.com/ethereum/go-ethereum/common"

	"swapRouter/internal/dex"
	"swapRouter/internal/model"
)

// candidate is an enumerated simple path from the input token to the output
// token.
type candidate struct {
	pools []model.Pool
	path  []model.Currency
	gas   uint64
}

func (c candidate) hops() int { return len(c.pools) }

func (c candidate) sharesPool(used map[model.PoolKey]struct{}) bool {
	for _, p := range c.pools {
		if _, ok := used[p.Key()]; ok {
			return true
		}
	}
	return false
}

// enumerateRoutes walks pools depth first, in the given order, collecting
// every path from in to out of at most maxHops that repeats neither a pool
// nor a token.
func enumerateRoutes(pools []model.Pool, in, out model.Currency, maxHops int) []candidate {
	target := out.TokenAddress()
	visited := map[common.Address]bool{in.TokenAddress(): true}
	usedPool := make([]bool, len(pools))
	stackPools := make([]model.Pool, 0, maxHops)
	stackPath := []model.Currency{in}

	var found []candidate
	var walk func(token common.Address)
	walk = func(token common.Address) {
		if len(stackPools) == maxHops {
			return
		}
		for i, pool := range pools {
			if usedPool[i] || !pool.Involves(token) {
				continue
			}
			next, _ := pool.Other(token)
			nextToken := next.TokenAddress()
			if visited[nextToken] {
				continue
			}

			if nextToken == target {
				path := append(append([]model.Currency(nil), stackPath...), out)
				hopPools := append(append([]model.Pool(nil), stackPools...), pool)
				found = append(found, candidate{pools: hopPools, path: path, gas: routeGas(hopPools)})
				continue
			}

			usedPool[i] = true
			visited[nextToken] = true
			stackPools = append(stackPools, pool)
			stackPath = append(stackPath, next)
			walk(nextToken)
			stackPath = stackPath[:len(stackPath)-1]
			stackPools = stackPools[:len(stackPools)-1]
			visited[nextToken] = false
			usedPool[i] = false
		}
	}
	walk(in.TokenAddress())
	return found
}

func routeGas(pools []model.Pool) uint64 {
	var gas uint64
	for _, p := range pools {
		gas += dex.HopGas(p)
	}
	return gas
}
