package productmock

import (
	"context"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/product"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	GetByProductIDFn func(ctx context.Context, productID string) (*domain.Product, error)
}

func (m *Repo) GetByProductID(ctx context.Context, productID string) (*domain.Product, error) {
	if m.GetByProductIDFn != nil {
		return m.GetByProductIDFn(ctx, productID)
	}
	return nil, context.Canceled
}

// Static serves a fixed product catalogue keyed by ProductID.
func Static(products ...domain.Product) *Repo {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}
	return &Repo{
		GetByProductIDFn: func(_ context.Context, productID string) (*domain.Product, error) {
			p, ok := byID[productID]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return &p, nil
		},
	}
}
