package cache

import (
	"context"
	"testing"

	"artisanmarket/backend/internal/domain"
)

func TestReportKeyCarriesEveryFilterField(t *testing.T) {
	base := ReportKey(domain.ReportFilter{Mode: domain.FilterCustom, Start: "2026-03-01", End: "2026-03-09"})

	variants := []domain.ReportFilter{
		{Mode: domain.FilterAll, Start: "2026-03-01", End: "2026-03-09"},
		{Mode: domain.FilterCustom, Start: "2026-03-02", End: "2026-03-09"},
		{Mode: domain.FilterCustom, Start: "2026-03-01", End: "2026-03-10"},
	}
	for _, v := range variants {
		if ReportKey(v) == base {
			t.Fatalf("filters %+v must not share a cache key", v)
		}
	}

	same := ReportKey(domain.ReportFilter{Mode: domain.FilterCustom, Start: "2026-03-01", End: "2026-03-09"})
	if same != base {
		t.Fatalf("identical filters must share a cache key: %q vs %q", same, base)
	}
}

func TestNoopReportCacheAlwaysMisses(t *testing.T) {
	var c NoopReportCache
	ctx := context.Background()

	if err := c.Set(ctx, "report:all::", &domain.SalesReport{}, 0); err != nil {
		t.Fatalf("noop set failed: %v", err)
	}
	report, ok, err := c.Get(ctx, "report:all::")
	if err != nil {
		t.Fatalf("noop get failed: %v", err)
	}
	if ok || report != nil {
		t.Fatalf("noop cache must never report a hit")
	}
}
