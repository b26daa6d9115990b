// Package news serves recent headlines for the get_stock_news tool.
package news

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

// Service caches headlines per symbol in front of a source
type Service struct {
	source interfaces.NewsSource
	cache  *headlineCache
}

var _ interfaces.NewsSource = (*Service)(nil)

// ServiceConfig configures the news service
type ServiceConfig struct {
	CacheDuration time.Duration
}

// NewService wraps source with a headline cache.
func NewService(source interfaces.NewsSource, cfg ServiceConfig) *Service {
	return &Service{source: source, cache: newHeadlineCache(cfg.CacheDuration)}
}

func (s *Service) Headlines(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error) {
	key := strings.ToUpper(symbol)
	if cached, ok := s.cache.get(key); ok && len(cached) >= limit {
		logger.Debug(ctx, "Using cached headlines", "symbol", key, "count", len(cached))
		return cached[:limit], nil
	}

	articles, err := s.source.Headlines(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, articles)
	return articles, nil
}

// headlineCache stores headlines for a limited time
type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	articles  []types.NewsArticle
	timestamp time.Time
}

func newHeadlineCache(ttl time.Duration) *headlineCache {
	return &headlineCache{data: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *headlineCache) get(symbol string) ([]types.NewsArticle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[symbol]
	if !ok || c.now().Sub(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.articles, true
}

func (c *headlineCache) set(symbol string, articles []types.NewsArticle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.data {
		if c.now().Sub(e.timestamp) > c.ttl {
			delete(c.data, k)
		}
	}
	c.data[symbol] = cacheEntry{articles: articles, timestamp: c.now()}
}
