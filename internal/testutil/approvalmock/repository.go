package approvalmock

import (
	"context"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	AppendFn       func(ctx context.Context, h *domain.History) error
	ListByLoanIDFn func(ctx context.Context, loanID string) ([]domain.History, error)
}

func (m *Repo) Append(ctx context.Context, h *domain.History) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, h)
	}
	return nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanID string) ([]domain.History, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}
