package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"artisanmarket/backend/internal/domain"
	"artisanmarket/backend/internal/report"
	"artisanmarket/backend/internal/store"
)

var (
	// ErrInvalidProduct rejects a catalog write before it reaches the store.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrUnknownProduct aborts a sale build whose cart references an id not
	// in the catalog. All-or-nothing: no partial sale is persisted.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrEmptySale aborts a build or edit that ends with no line items.
	ErrEmptySale = errors.New("sale has no items")
	// ErrMissingMarketName aborts a build with a blank market name.
	ErrMissingMarketName = errors.New("market name required")
	// ErrInvalidSale rejects malformed sale payloads (bad date, negative
	// amounts) that the defined error kinds do not cover.
	ErrInvalidSale = errors.New("invalid sale payload")
	// ErrInvalidFilter rejects a report filter whose custom bounds are not
	// parseable calendar dates.
	ErrInvalidFilter = errors.New("invalid report filter")
)

// Service is the sales ledger: catalog manager, sale builder, ledger editor
// and the reporting entry point, all writing through a single Repository.
type Service struct {
	repo    store.Repository
	reports *report.Engine
}

func New(repo store.Repository, reports *report.Engine) *Service {
	if reports == nil {
		reports = report.NewEngine(nil, 0)
	}
	return &Service{
		repo:    repo,
		reports: reports,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name == products[j].Name {
			return products[i].ID < products[j].ID
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	product := domain.Product{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(req.Name),
		Price: req.Price,
		Cost:  req.Cost,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.PutProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:    id,
		Name:  strings.TrimSpace(req.Name),
		Price: req.Price,
		Cost:  req.Cost,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.PutProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// DeleteProduct removes the product immediately. Sales referencing the id
// are untouched: they carry their own price/cost snapshot.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

func validateProduct(product domain.Product) error {
	if product.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidProduct)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if product.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidProduct)
	}
	return nil
}

// RecordSale turns a cart into a persisted sale. Product price and cost are
// snapshotted at this moment; the whole operation either commits one record
// or writes nothing.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	date, err := normalizeDate(req.Date)
	if err != nil {
		return domain.Sale{}, err
	}
	if req.MarketCost.IsNegative() {
		return domain.Sale{}, fmt.Errorf("%w: market cost must not be negative", ErrInvalidSale)
	}

	items := make([]domain.SaleItem, 0, len(req.Cart))
	for productID, qty := range req.Cart {
		if qty <= 0 {
			continue
		}
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Sale{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
			}
			return domain.Sale{}, err
		}
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    qty,
			PriceAtSale: product.Price,
			CostAtSale:  product.Cost,
		})
	}
	if len(items) == 0 {
		return domain.Sale{}, ErrEmptySale
	}

	marketName := strings.TrimSpace(req.MarketName)
	if marketName == "" {
		return domain.Sale{}, ErrMissingMarketName
	}

	// Cart iteration order is undefined; fix a stable display order.
	sort.Slice(items, func(i, j int) bool {
		if items[i].ProductName == items[j].ProductName {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].ProductName < items[j].ProductName
	})

	revenue, cost, profit := computeTotals(items, req.MarketCost)

	sale := domain.Sale{
		ID:           uuid.NewString(),
		Date:         date,
		CreatedAt:    stampOnDate(date, time.Now().UTC()),
		MarketName:   marketName,
		Items:        items,
		MarketCost:   req.MarketCost,
		TotalRevenue: revenue,
		TotalCost:    cost,
		Profit:       profit,
	}

	if err := s.repo.PutSale(ctx, sale); err != nil {
		return domain.Sale{}, err
	}

	s.rememberLastMarket(ctx, marketName, date)

	return sale, nil
}

// UpdateSale replaces an existing sale's line items and market cost,
// recomputing all derived totals. Identity, date, creation timestamp and
// market name never change through an edit.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	existing, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.MarketCost.IsNegative() {
		return domain.Sale{}, fmt.Errorf("%w: market cost must not be negative", ErrInvalidSale)
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			continue
		}
		if item.PriceAtSale.IsNegative() || item.CostAtSale.IsNegative() {
			return domain.Sale{}, fmt.Errorf("%w: item amounts must not be negative", ErrInvalidSale)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return domain.Sale{}, ErrEmptySale
	}

	revenue, cost, profit := computeTotals(items, req.MarketCost)

	updated := domain.Sale{
		ID:           existing.ID,
		Date:         existing.Date,
		CreatedAt:    existing.CreatedAt,
		MarketName:   existing.MarketName,
		Items:        items,
		MarketCost:   req.MarketCost,
		TotalRevenue: revenue,
		TotalCost:    cost,
		Profit:       profit,
	}

	if err := s.repo.PutSale(ctx, updated); err != nil {
		return domain.Sale{}, err
	}
	return updated, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	return s.repo.DeleteSale(ctx, id)
}

// ListSales returns the full ledger, most recent first.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].ID > sales[j].ID
		}
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	return sales, nil
}

// Report generates the filtered, aggregated report the rendering layer
// consumes. The result is a read-only snapshot.
func (s *Service) Report(ctx context.Context, filter domain.ReportFilter) (domain.SalesReport, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return domain.SalesReport{}, err
	}

	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	return s.reports.Generate(ctx, sales, filter), nil
}

// normalizeFilter re-pads the custom bounds so the engine's lexicographic
// range checks see canonical dates. A bound that is present but not a
// parseable date is rejected; a report over a garbled range would be wrong
// with no sign of it. Absent bounds pass through untouched, the engine
// treats them as the documented no-filter fallback.
func normalizeFilter(filter domain.ReportFilter) (domain.ReportFilter, error) {
	if filter.Mode != domain.FilterCustom {
		return filter, nil
	}

	var err error
	if filter.Start != "" {
		if filter.Start, err = normalizeBound(filter.Start); err != nil {
			return domain.ReportFilter{}, err
		}
	}
	if filter.End != "" {
		if filter.End, err = normalizeBound(filter.End); err != nil {
			return domain.ReportFilter{}, err
		}
	}
	return filter, nil
}

func normalizeBound(raw string) (string, error) {
	parsed, err := time.Parse(domain.DateFormat, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", ErrInvalidFilter, raw)
	}
	return parsed.Format(domain.DateFormat), nil
}

// MarketSuggestions returns the distinct market names of sales recorded on
// the given date, in order of first occurrence, used to pre-fill repeat
// visits to the same market.
func (s *Service) MarketSuggestions(ctx context.Context, date string) ([]string, error) {
	date, err := normalizeDate(date)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].ID < sales[j].ID
		}
		return sales[i].CreatedAt.Before(sales[j].CreatedAt)
	})

	seen := make(map[string]struct{})
	names := make([]string, 0, 4)
	for _, sale := range sales {
		if sale.Date != date || sale.MarketName == "" {
			continue
		}
		if _, dup := seen[sale.MarketName]; dup {
			continue
		}
		seen[sale.MarketName] = struct{}{}
		names = append(names, sale.MarketName)
	}
	return names, nil
}

func (s *Service) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return domain.Setting{}, err
	}
	return *setting, nil
}

func (s *Service) PutSetting(ctx context.Context, key string, value string) (domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Setting{}, fmt.Errorf("%w: setting key must not be empty", ErrInvalidSale)
	}
	setting := domain.Setting{Key: key, Value: value}
	if err := s.repo.PutSetting(ctx, setting); err != nil {
		return domain.Setting{}, err
	}
	return setting, nil
}

// rememberLastMarket persists the last-used market name and date as ordinary
// settings. Best effort: the sale is already committed, a failed convenience
// write only logs.
func (s *Service) rememberLastMarket(ctx context.Context, marketName string, date string) {
	if err := s.repo.PutSetting(ctx, domain.Setting{Key: domain.SettingLastMarketName, Value: marketName}); err != nil {
		log.Warn().Err(err).Msg("failed to persist last market name")
	}
	if err := s.repo.PutSetting(ctx, domain.Setting{Key: domain.SettingLastSaleDate, Value: date}); err != nil {
		log.Warn().Err(err).Msg("failed to persist last sale date")
	}
}

func computeTotals(items []domain.SaleItem, marketCost decimal.Decimal) (revenue, cost, profit decimal.Decimal) {
	revenue = decimal.Zero
	productCost := decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		revenue = revenue.Add(item.PriceAtSale.Mul(qty))
		productCost = productCost.Add(item.CostAtSale.Mul(qty))
	}
	cost = productCost.Add(marketCost)
	profit = revenue.Sub(cost)
	return revenue, cost, profit
}

// normalizeDate parses a calendar date and re-formats it zero-padded, so
// stored dates always compare lexicographically in chronological order.
// A blank date defaults to today.
func normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC().Format(domain.DateFormat), nil
	}
	parsed, err := time.Parse(domain.DateFormat, raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", ErrInvalidSale, raw)
	}
	return parsed.Format(domain.DateFormat), nil
}

// stampOnDate combines the sale's calendar date with the current
// time-of-day, so same-day sales order naturally in the ledger.
func stampOnDate(date string, now time.Time) time.Time {
	day, err := time.Parse(domain.DateFormat, date)
	if err != nil {
		return now
	}
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
}
