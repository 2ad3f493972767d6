// Package dashboard serves the landing page figures: summary cards and the
// monthly paid-vs-unpaid chart, read through a redis cache that the worker
// keeps warm.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/aquabill/aquabill-web/internal/billing"
)

const (
	summaryCacheKey = "dashboard:summary"
	monthlyCacheKey = "dashboard:monthly"
)

// StatsPort is the slice of the upstream client the dashboard needs.
type StatsPort interface {
	DashboardSummary(ctx context.Context) (*billing.DashboardSummary, error)
	DashboardMonthly(ctx context.Context) ([]billing.MonthlyPoint, error)
}

// Cache wraps redis based caching of upstream dashboard responses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("dashboard: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return reencode(value, dest)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(encoded, dest)
}

// Store writes a value to the cache unconditionally.
func (c *Cache) Store(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, encoded, c.ttl).Err()
}

func reencode(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Overview is everything the landing page renders.
type Overview struct {
	Summary billing.DashboardSummary
	Monthly []billing.MonthlyPoint
}

// Service assembles the landing page data.
type Service struct {
	api   StatsPort
	cache *Cache
}

// NewService builds a Service instance.
func NewService(api StatsPort, cache *Cache) *Service {
	return &Service{api: api, cache: cache}
}

// Overview fetches the summary and the monthly series concurrently, each
// read through the cache.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var out Overview

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.cache.FetchJSON(ctx, summaryCacheKey, &out.Summary, func(ctx context.Context) (any, error) {
			return s.api.DashboardSummary(ctx)
		})
	})
	g.Go(func() error {
		return s.cache.FetchJSON(ctx, monthlyCacheKey, &out.Monthly, func(ctx context.Context) (any, error) {
			return s.api.DashboardMonthly(ctx)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh bypasses the cache and re-populates both entries. The worker runs
// this on a schedule so page loads mostly hit warm data.
func (s *Service) Refresh(ctx context.Context) error {
	summary, err := s.api.DashboardSummary(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Store(ctx, summaryCacheKey, summary); err != nil {
		return err
	}
	monthly, err := s.api.DashboardMonthly(ctx)
	if err != nil {
		return err
	}
	return s.cache.Store(ctx, monthlyCacheKey, monthly)
}
