package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"artisanmarket/backend/internal/domain"
	"artisanmarket/backend/internal/store"
)

// Store is the in-memory repository used for dev/demo mode and tests. Records
// are copied on the way in and out, so loaded snapshots stay immutable.
type Store struct {
	mu       sync.RWMutex
	closed   bool
	products map[string]domain.Product
	sales    map[string]domain.Sale
	settings map[string]domain.Setting
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.Sale),
		settings: make(map[string]domain.Setting),
	}
}

// NewSeeded returns a store pre-filled with a small artisan catalog for
// demo mode.
func NewSeeded() *Store {
	s := New()
	seed := []struct {
		name  string
		price string
		cost  string
	}{
		{"Candela di soia", "12.50", "4.20"},
		{"Sapone artigianale", "6.00", "1.80"},
		{"Borsa in tela", "18.00", "7.50"},
		{"Orecchini in ceramica", "15.00", "3.90"},
		{"Portachiavi in cuoio", "8.00", "2.60"},
	}
	for _, p := range seed {
		id := uuid.NewString()
		s.products[id] = domain.Product{
			ID:    id,
			Name:  p.name,
			Price: decimal.RequireFromString(p.price),
			Cost:  decimal.RequireFromString(p.cost),
		}
	}
	return s
}

// Close marks the store unavailable. Any later operation reports
// store.ErrUnavailable until a new store is created.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) PutProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	s.products[product.ID] = product
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	delete(s.products, id)
	return nil
}

func (s *Store) PutSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	s.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	return sales, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	delete(s.sales, id)
	return nil
}

func (s *Store) PutSetting(_ context.Context, setting domain.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	s.settings[setting.Key] = setting
	return nil
}

func (s *Store) GetSetting(_ context.Context, key string) (*domain.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	setting, exists := s.settings[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := setting
	return &copied, nil
}

// cloneSale copies a sale including its item slice, so callers can never
// mutate stored state through a returned record.
func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = make([]domain.SaleItem, len(sale.Items))
	copy(copied.Items, sale.Items)
	return copied
}
