package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/store"
)

// AnalyticsStore is the persistence surface behind the dashboard.
type AnalyticsStore interface {
	SalesSummarySince(ctx context.Context, since time.Time) (store.SalesSummary, error)
	TopProductsSince(ctx context.Context, since time.Time, limit int) ([]store.ProductSales, error)
}

// Overview is the back-office dashboard payload.
type Overview struct {
	Period      string               `json:"period"`
	Summary     store.SalesSummary   `json:"summary"`
	TopProducts []store.ProductSales `json:"topProducts"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// Service computes sales aggregates for the admin dashboard, cached in
// redis because the queries scan the full order history.
type Service struct {
	Store    AnalyticsStore
	Redis    *redis.Client
	CacheTTL time.Duration
	Now      func() time.Time
	Log      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// periodStart maps a named period to its cutoff. Unknown periods fall back
// to 30 days.
func (s *Service) periodStart(period string) (string, time.Time) {
	now := s.now()
	switch period {
	case "7d":
		return "7d", now.AddDate(0, 0, -7)
	case "90d":
		return "90d", now.AddDate(0, 0, -90)
	case "all":
		return "all", time.Time{}
	default:
		return "30d", now.AddDate(0, 0, -30)
	}
}

// GetOverview builds the dashboard for the requested period.
func (s *Service) GetOverview(ctx context.Context, period string) (Overview, error) {
	name, since := s.periodStart(period)
	cacheKey := "analytics:overview:" + name

	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Overview
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	summary, err := s.Store.SalesSummarySince(ctx, since)
	if err != nil {
		return Overview{}, fmt.Errorf("sales summary: %w", err)
	}
	top, err := s.Store.TopProductsSince(ctx, since, 10)
	if err != nil {
		return Overview{}, fmt.Errorf("top products: %w", err)
	}
	if top == nil {
		top = []store.ProductSales{}
	}
	overview := Overview{
		Period:      name,
		Summary:     summary,
		TopProducts: top,
		GeneratedAt: s.now().UTC(),
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(overview); err == nil {
			if err := s.Redis.Set(ctx, cacheKey, raw, s.CacheTTL).Err(); err != nil {
				s.Log.Warn().Err(err).Msg("analytics cache write failed")
			}
		}
	}
	return overview, nil
}
