package cache

import (
	"context"
	"fmt"
	"time"

	"artisanmarket/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesReport, ttl time.Duration) error
}

// ReportKey derives the cache key for one report filter. The key carries
// every field the generated report depends on, so two filters collide only
// when their reports are identical.
func ReportKey(filter domain.ReportFilter) string {
	return fmt.Sprintf("report:%s:%s:%s", filter.Mode, filter.Start, filter.End)
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.SalesReport, _ time.Duration) error {
	return nil
}
