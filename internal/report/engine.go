package report

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"artisanmarket/backend/internal/cache"
	"artisanmarket/backend/internal/domain"
)

// Engine turns the full sale collection into filtered, aggregated reports.
// Generated reports are cached per filter for a short TTL; a report computed
// from a slightly stale snapshot is acceptable, the next expiry reloads.
type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

func (e *Engine) Generate(ctx context.Context, sales []domain.Sale, filter domain.ReportFilter) domain.SalesReport {
	cacheKey := cache.ReportKey(filter)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached
	}

	filtered := FilterSales(sales, filter, time.Now())

	report := domain.SalesReport{
		Filter:      filter,
		Sales:       filtered,
		Totals:      Totals(filtered),
		Monthly:     MonthlyStats(filtered),
		GeneratedAt: time.Now().UTC(),
	}

	// Best effort: the report is already computed, a failed cache write only
	// costs the next caller a recompute.
	if err := e.cache.Set(ctx, cacheKey, &report, e.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache report")
	}

	return report
}

// FilterSales applies the filter's date predicate to the sale collection.
// Boundaries are inclusive on both ends and must be canonical DateFormat
// dates; the service normalizes them before they reach the engine. A custom
// filter missing either bound is a defined fallback, not an error: it
// returns the unfiltered set.
func FilterSales(sales []domain.Sale, filter domain.ReportFilter, now time.Time) []domain.Sale {
	switch filter.Mode {
	case domain.FilterYear:
		year := now.Format("2006")
		return filterRange(sales, year+"-01-01", year+"-12-31")
	case domain.FilterCustom:
		if filter.Start == "" || filter.End == "" {
			return sales
		}
		return filterRange(sales, filter.Start, filter.End)
	default:
		return sales
	}
}

// filterRange keeps sales whose date falls within [start, end]. Dates are
// zero-padded ISO strings, so string comparison is chronological.
func filterRange(sales []domain.Sale, start string, end string) []domain.Sale {
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.Date >= start && sale.Date <= end {
			filtered = append(filtered, sale)
		}
	}
	return filtered
}

// Totals accumulates grand totals over the filtered set. Order-independent,
// no intermediate rounding; rounding is a presentation concern.
func Totals(sales []domain.Sale) domain.ReportTotals {
	totals := domain.ReportTotals{
		Revenue: decimal.Zero,
		Cost:    decimal.Zero,
		Profit:  decimal.Zero,
	}
	for _, sale := range sales {
		totals.Revenue = totals.Revenue.Add(sale.TotalRevenue)
		totals.Cost = totals.Cost.Add(sale.TotalCost)
		totals.Profit = totals.Profit.Add(sale.Profit)
	}
	return totals
}

// MonthlyStats groups sales by calendar year+month and returns the buckets
// most recent month first. The "YYYY-MM" keys sort lexicographically in
// chronological order, so a plain descending string sort is correct.
func MonthlyStats(sales []domain.Sale) []domain.MonthlyBucket {
	byMonth := make(map[string]domain.MonthlyBucket)
	for _, sale := range sales {
		key := sale.MonthKey()
		bucket, exists := byMonth[key]
		if !exists {
			bucket = domain.MonthlyBucket{
				Month:   key,
				Revenue: decimal.Zero,
				Cost:    decimal.Zero,
				Profit:  decimal.Zero,
			}
		}
		bucket.Count++
		bucket.Revenue = bucket.Revenue.Add(sale.TotalRevenue)
		bucket.Cost = bucket.Cost.Add(sale.TotalCost)
		bucket.Profit = bucket.Profit.Add(sale.Profit)
		byMonth[key] = bucket
	}

	buckets := make([]domain.MonthlyBucket, 0, len(byMonth))
	for _, bucket := range byMonth {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Month > buckets[j].Month
	})
	return buckets
}
