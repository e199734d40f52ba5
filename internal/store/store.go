package store

import (
	"context"
	"errors"

	"artisanmarket/backend/internal/domain"
)

var (
	// ErrNotFound is returned when a record id does not exist in its collection.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the underlying store is closed or
	// unreachable. Retryable by reopening; never partial.
	ErrUnavailable = errors.New("storage unavailable")
)

// Repository is keyed collection storage for the three record kinds. Put is
// an upsert: it serves both creation and whole-record replacement. List
// methods return records in no defined order; callers apply their own.
// A single logical writer is assumed; reads may run concurrently and operate
// on immutable copies.
type Repository interface {
	PutProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	PutSale(ctx context.Context, sale domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error

	PutSetting(ctx context.Context, setting domain.Setting) error
	GetSetting(ctx context.Context, key string) (*domain.Setting, error)
}
