package approval

import "context"

// Repository is the approval ledger. There is deliberately no update or delete.
type Repository interface {
	Append(ctx context.Context, h *History) error

	// ListByLoanID returns the loan's entries oldest first.
	ListByLoanID(ctx context.Context, loanID string) ([]History, error)
}
