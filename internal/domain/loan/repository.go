package loan

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	// Save persists status/stage/timestamp changes. It fails with
	// ErrConcurrentModification when the stored version moved since l was read.
	Save(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate row-locks the loan for the rest of the transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Loan, error)
	FindActiveByCustomer(ctx context.Context, customerID string, statuses []Status) ([]Loan, error)
	SumAmountByCustomer(ctx context.Context, customerID string, statuses []Status) (decimal.Decimal, error)
}
