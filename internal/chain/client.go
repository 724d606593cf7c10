package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides the reads the router needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	gasPriceTTL time.Duration

	mu         sync.RWMutex
	chainID    *big.Int
	gasPrice   *big.Int
	gasPriceAt time.Time
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		gasPriceTTL: 5 * time.Second,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID served by the endpoint. The value is cached
// after the first successful read.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.chainID
	c.mu.RUnlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()
	return id, nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// GasPrice returns the suggested gas price, using a short-lived cache so one
// quote does not issue a request per candidate route.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	price, at := c.gasPrice, c.gasPriceAt
	c.mu.RUnlock()
	if price != nil && time.Since(at) < c.gasPriceTTL {
		return new(big.Int).Set(price), nil
	}

	price, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.gasPrice = new(big.Int).Set(price)
	c.gasPriceAt = time.Now()
	c.mu.Unlock()
	return price, nil
}

// EstimateGas runs eth_estimateGas for msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.ethClient.EstimateGas(ctx, msg)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
