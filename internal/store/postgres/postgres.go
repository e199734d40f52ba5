package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"artisanmarket/backend/internal/domain"
	"artisanmarket/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSchema creates the three collections and their secondary indices.
// Every statement is idempotent, so upgrades are additive: re-running
// against an existing database is a no-op.
func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			cost NUMERIC(12,2) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS products_name_idx ON products (name)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			sale_date TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			market_name TEXT NOT NULL,
			market_cost NUMERIC(12,2) NOT NULL,
			total_revenue NUMERIC(12,2) NOT NULL,
			total_cost NUMERIC(12,2) NOT NULL,
			profit NUMERIC(12,2) NOT NULL,
			items JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (sale_date)`,
		`CREATE INDEX IF NOT EXISTS sales_created_at_idx ON sales (created_at)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) PutProduct(ctx context.Context, product domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, cost, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, cost = EXCLUDED.cost, updated_at = now()
	`, product.ID, product.Name, product.Price, product.Cost)
	return mapError(err)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, cost
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Price, &product.Cost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, cost
		FROM products
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Cost); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return products, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return mapError(err)
}

func (s *Store) PutSale(ctx context.Context, sale domain.Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, sale_date, created_at, market_name, market_cost, total_revenue, total_cost, profit, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE
		SET sale_date = EXCLUDED.sale_date,
		    created_at = EXCLUDED.created_at,
		    market_name = EXCLUDED.market_name,
		    market_cost = EXCLUDED.market_cost,
		    total_revenue = EXCLUDED.total_revenue,
		    total_cost = EXCLUDED.total_cost,
		    profit = EXCLUDED.profit,
		    items = EXCLUDED.items
	`, sale.ID, sale.Date, sale.CreatedAt, sale.MarketName, sale.MarketCost, sale.TotalRevenue, sale.TotalCost, sale.Profit, items)
	return mapError(err)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var (
		sale     domain.Sale
		rawItems []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_date, created_at, market_name, market_cost, total_revenue, total_cost, profit, items
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Date, &sale.CreatedAt, &sale.MarketName, &sale.MarketCost, &sale.TotalRevenue, &sale.TotalCost, &sale.Profit, &rawItems)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	if err := json.Unmarshal(rawItems, &sale.Items); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_date, created_at, market_name, market_cost, total_revenue, total_cost, profit, items
		FROM sales
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var (
			sale     domain.Sale
			rawItems []byte
		)
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.CreatedAt, &sale.MarketName, &sale.MarketCost, &sale.TotalRevenue, &sale.TotalCost, &sale.Profit, &rawItems); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawItems, &sale.Items); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return sales, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	return mapError(err)
}

func (s *Store) PutSetting(ctx context.Context, setting domain.Setting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, setting.Key, setting.Value)
	return mapError(err)
}

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	var setting domain.Setting
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value
		FROM settings
		WHERE key = $1
	`, key).Scan(&setting.Key, &setting.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &setting, nil
}

// mapError folds closed-pool and unreachable-server failures into
// store.ErrUnavailable so callers can treat them uniformly as retryable by
// reopening. database/sql's closed-db error is unexported, hence the string
// check.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") || strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
