package loanmock

import (
	"context"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"

	"github.com/shopspring/decimal"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset writers are no-ops; unset readers return context.Canceled.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.Loan) error
	SaveFn                 func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.Loan, error)
	ListByCustomerFn       func(ctx context.Context, customerID string) ([]domain.Loan, error)
	FindActiveByCustomerFn func(ctx context.Context, customerID string, statuses []domain.Status) ([]domain.Loan, error)
	SumAmountByCustomerFn  func(ctx context.Context, customerID string, statuses []domain.Status) (decimal.Decimal, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Loan, error) {
	if m.ListByCustomerFn != nil {
		return m.ListByCustomerFn(ctx, customerID)
	}
	return nil, context.Canceled
}

func (m *Repo) FindActiveByCustomer(ctx context.Context, customerID string, statuses []domain.Status) ([]domain.Loan, error) {
	if m.FindActiveByCustomerFn != nil {
		return m.FindActiveByCustomerFn(ctx, customerID, statuses)
	}
	return nil, context.Canceled
}

func (m *Repo) SumAmountByCustomer(ctx context.Context, customerID string, statuses []domain.Status) (decimal.Decimal, error) {
	if m.SumAmountByCustomerFn != nil {
		return m.SumAmountByCustomerFn(ctx, customerID, statuses)
	}
	return decimal.Zero, context.Canceled
}
