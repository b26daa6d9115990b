// Package broker selects and scopes brokerage backends.
//
// Backends are bound to one Environment at construction. A Session holds one
// client per environment for the duration of a run and tracks which one is
// selected, so switching accounts never leaks past the run that asked for it.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

type Environment string

const (
	Paper Environment = "paper"
	Live  Environment = "live"
)

var ErrUnknownEnvironment = errors.New("unknown broker environment")

func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Paper:
		return Paper, nil
	case Live:
		return Live, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, s)
}

// Client is a full backend: account operations plus market data.
type Client interface {
	interfaces.Broker
	interfaces.MarketData
}

// Factory builds the backend for one environment.
type Factory func(env Environment) (Client, error)

// Session is the account context of one run.
type Session struct {
	factory Factory

	mu      sync.Mutex
	current Environment
	clients map[Environment]Client
}

var _ Client = (*Session)(nil)

func NewSession(factory Factory, env Environment) *Session {
	return &Session{
		factory: factory,
		current: env,
		clients: make(map[Environment]Client, 2),
	}
}

// Environment reports the selected environment.
func (s *Session) Environment() Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Switch selects env. The client is built before the switch takes effect,
// so a missing credential leaves the session where it was.
func (s *Session) Switch(ctx context.Context, env Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.clientLocked(env); err != nil {
		return err
	}
	if s.current != env {
		logger.Info(ctx, "Switched broker environment", "from", string(s.current), "to", string(env))
	}
	s.current = env
	return nil
}

// Client returns the backend of the selected environment.
func (s *Session) Client() (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientLocked(s.current)
}

func (s *Session) clientLocked(env Environment) (Client, error) {
	if c, ok := s.clients[env]; ok {
		return c, nil
	}
	if s.factory == nil {
		return nil, fmt.Errorf("no broker configured for %s environment", env)
	}
	c, err := s.factory(env)
	if err != nil {
		return nil, fmt.Errorf("%s broker: %w", env, err)
	}
	s.clients[env] = c
	return c, nil
}

func (s *Session) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	c, err := s.Client()
	if err != nil {
		return types.Order{}, err
	}
	return c.SubmitOrder(ctx, req)
}

func (s *Session) CancelOrder(ctx context.Context, orderID string) error {
	c, err := s.Client()
	if err != nil {
		return err
	}
	return c.CancelOrder(ctx, orderID)
}

func (s *Session) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	c, err := s.Client()
	if err != nil {
		return types.Order{}, err
	}
	return c.GetOrder(ctx, orderID)
}

func (s *Session) ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.ListOrders(ctx, filter)
}

func (s *Session) Positions(ctx context.Context) ([]types.Position, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.Positions(ctx)
}

func (s *Session) Account(ctx context.Context) (types.Account, error) {
	c, err := s.Client()
	if err != nil {
		return types.Account{}, err
	}
	return c.Account(ctx)
}

func (s *Session) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	c, err := s.Client()
	if err != nil {
		return 0, err
	}
	return c.LatestPrice(ctx, symbol)
}

func (s *Session) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.RecentCandles(ctx, symbol, n)
}

func (s *Session) OptionContracts(ctx context.Context, q types.OptionContractQuery) ([]types.OptionContract, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	return c.OptionContracts(ctx, q)
}

func (s *Session) LatestCryptoPrice(ctx context.Context, pair string) (float64, error) {
	c, err := s.Client()
	if err != nil {
		return 0, err
	}
	return c.LatestCryptoPrice(ctx, pair)
}
