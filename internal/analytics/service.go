// Package analytics serves admin revenue and offer-performance reports over
// order snapshots. Results are cached in Redis for a short TTL; reports are
// read-only and tolerate slightly stale data.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// Querier defines the database access required for report queries.
type Querier interface {
	RevenueDailyRange(ctx context.Context, from, to time.Time) ([]store.RevenueDailyRow, error)
	TopOffers(ctx context.Context, limit int32) ([]store.TopOfferRow, error)
}

// Service provides cached access to the report queries.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Revenue returns daily totals between from (inclusive) and to (exclusive).
func (s *Service) Revenue(ctx context.Context, from, to time.Time) ([]store.RevenueDailyRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "revenue", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []store.RevenueDailyRow
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.RevenueDailyRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.putCached(ctx, key, rows)
	return rows, nil
}

// TopOffers returns the most redeemed offer codes.
func (s *Service) TopOffers(ctx context.Context, limit int32) ([]store.TopOfferRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey("an", "offers", limit)
	var cached []store.TopOfferRow
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.TopOffers(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.putCached(ctx, key, rows)
	return rows, nil
}

func (s *Service) getCached(ctx context.Context, key string, out any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	raw, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *Service) putCached(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, raw, s.TTL).Err()
}
