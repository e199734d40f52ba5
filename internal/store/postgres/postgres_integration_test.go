package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"artisanmarket/backend/internal/domain"
	"artisanmarket/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	databaseURL := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set LEDGER_TEST_DATABASE_URL to run postgres integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestProductRoundTripAndUpsert(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("prod-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	})

	product := domain.Product{
		ID:    id,
		Name:  "Candela IT",
		Price: decimal.RequireFromString("12.50"),
		Cost:  decimal.RequireFromString("4.20"),
	}
	if err := s.PutProduct(ctx, product); err != nil {
		t.Fatalf("put product: %v", err)
	}

	product.Price = decimal.RequireFromString("14.00")
	if err := s.PutProduct(ctx, product); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	loaded, err := s.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !loaded.Price.Equal(decimal.RequireFromString("14.00")) {
		t.Fatalf("expected upserted price 14.00, got %s", loaded.Price)
	}

	if err := s.DeleteProduct(ctx, id); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := s.GetProduct(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSaleRoundTripPreservesItems(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	id := fmt.Sprintf("sale-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	})

	sale := domain.Sale{
		ID:         id,
		Date:       "2026-08-15",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		MarketName: "Mercato IT",
		Items: []domain.SaleItem{
			{
				ProductID:   "p1",
				ProductName: "Candela",
				Quantity:    3,
				PriceAtSale: decimal.RequireFromString("10"),
				CostAtSale:  decimal.RequireFromString("4"),
			},
		},
		MarketCost:   decimal.RequireFromString("5"),
		TotalRevenue: decimal.RequireFromString("30"),
		TotalCost:    decimal.RequireFromString("17"),
		Profit:       decimal.RequireFromString("13"),
	}
	if err := s.PutSale(ctx, sale); err != nil {
		t.Fatalf("put sale: %v", err)
	}

	loaded, err := s.GetSale(ctx, id)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if loaded.Date != "2026-08-15" || loaded.MarketName != "Mercato IT" {
		t.Fatalf("sale fields mangled: %+v", loaded)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].Quantity != 3 {
		t.Fatalf("line items mangled: %+v", loaded.Items)
	}
	if !loaded.Profit.Equal(decimal.RequireFromString("13")) {
		t.Fatalf("expected profit 13, got %s", loaded.Profit)
	}
}

func TestSettingUpsert(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	key := fmt.Sprintf("setting-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	})

	if err := s.PutSetting(ctx, domain.Setting{Key: key, Value: "first"}); err != nil {
		t.Fatalf("put setting: %v", err)
	}
	if err := s.PutSetting(ctx, domain.Setting{Key: key, Value: "second"}); err != nil {
		t.Fatalf("upsert setting: %v", err)
	}

	loaded, err := s.GetSetting(ctx, key)
	if err != nil {
		t.Fatalf("get setting: %v", err)
	}
	if loaded.Value != "second" {
		t.Fatalf("expected overwritten value, got %q", loaded.Value)
	}
}
