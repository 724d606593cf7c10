// Package submit gates transaction submission on the wallet being connected
// to the required network.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"swapRouter/internal/metrics"
	"swapRouter/internal/model"
)

// State is the submission readiness.
type State int

const (
	Disconnected State = iota
	WrongNetwork
	Ready
)

func (s State) String() string {
	switch s {
	case WrongNetwork:
		return "wrong_network"
	case Ready:
		return "ready"
	default:
		return "disconnected"
	}
}

// Coordinator tracks account observations and requests at most one network
// switch per wrong-network episode. It is safe for concurrent use.
type Coordinator struct {
	wallet        Wallet
	required      uint64
	switchTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger

	mu      sync.Mutex
	state   State
	account AccountState
	// episode increments on every entry into WrongNetwork.
	episode   uint64
	requested bool
	lastErr   error

	wg     conc.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCoordinator(wallet Wallet, requiredChainID uint64, switchTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if switchTimeout <= 0 {
		switchTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		wallet:        wallet,
		required:      requiredChainID,
		switchTimeout: switchTimeout,
		metrics:       m,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
	m.SetNetworkState(int(Disconnected))
	return c
}

// State returns the current readiness.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the last switch failure of the current episode, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Refresh reads the account from the wallet and observes it.
func (c *Coordinator) Refresh(ctx context.Context) (State, error) {
	acct, err := c.wallet.Account(ctx)
	if err != nil {
		c.Observe(AccountState{})
		return Disconnected, fmt.Errorf("read account: %w", err)
	}
	return c.Observe(acct), nil
}

// Observe applies an account observation and returns the resulting state.
// Entering WrongNetwork issues one asynchronous switch request; further
// observations in the same episode do not issue another.
func (c *Coordinator) Observe(acct AccountState) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.account = acct
	switch {
	case !acct.Connected:
		c.setState(Disconnected)
	case acct.ChainID == c.required:
		c.lastErr = nil
		c.setState(Ready)
	default:
		if c.state != WrongNetwork {
			c.episode++
			c.requested = false
			c.lastErr = nil
		}
		c.setState(WrongNetwork)
		if !c.requested {
			c.requested = true
			c.requestSwitch(c.episode, acct.ChainID)
		}
	}
	return c.state
}

// Submit sends req through the wallet. Anything but Ready is refused with
// model.ErrNotConnected and the wallet is not touched.
func (c *Coordinator) Submit(ctx context.Context, req TxRequest) (TxHandle, error) {
	c.mu.Lock()
	state, acct, lastErr := c.state, c.account, c.lastErr
	c.mu.Unlock()

	if state != Ready {
		c.metrics.SubmitOutcome("blocked")
		err := fmt.Errorf("%w: %s (have chain %d, want %d)", model.ErrNotConnected, state, acct.ChainID, c.required)
		if lastErr != nil {
			err = fmt.Errorf("%w: %w", err, lastErr)
		}
		return "", err
	}
	// the connected account is the sender
	req.From = acct.Address
	req.ChainID = c.required

	handle, err := c.wallet.SendTransaction(ctx, req)
	if err != nil {
		c.metrics.SubmitOutcome("error")
		return "", fmt.Errorf("send transaction: %w", err)
	}
	c.metrics.SubmitOutcome("sent")
	c.logger.Info("transaction submitted",
		zap.String("handle", string(handle)),
		zap.String("to", req.To.Hex()),
		zap.Uint64("chain_id", req.ChainID),
	)
	return handle, nil
}

// Close stops pending switch requests and waits for them.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until pending switch requests finish.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) setState(s State) {
	if c.state != s {
		c.logger.Info("network state changed",
			zap.String("from", c.state.String()),
			zap.String("to", s.String()),
			zap.Uint64("chain_id", c.account.ChainID),
		)
	}
	c.state = s
	c.metrics.SetNetworkState(int(s))
}

// requestSwitch must be called with mu held.
func (c *Coordinator) requestSwitch(episode, have uint64) {
	c.logger.Info("requesting network switch",
		zap.Uint64("have", have),
		zap.Uint64("want", c.required),
	)
	c.wg.Go(func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.switchTimeout)
		defer cancel()
		err := c.wallet.SwitchNetwork(ctx, c.required)

		c.mu.Lock()
		defer c.mu.Unlock()
		if episode != c.episode || c.state != WrongNetwork {
			return
		}
		if err != nil {
			c.lastErr = fmt.Errorf("%w: %w", model.ErrNetworkSwitchRejected, err)
			if errors.Is(err, model.ErrNetworkSwitchRejected) {
				c.lastErr = err
			}
			c.logger.Warn("network switch rejected", zap.Error(err))
			return
		}
		c.account.ChainID = c.required
		c.setState(Ready)
	})
}
