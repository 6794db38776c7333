package uow

import (
	"context"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"
)

// Repos are bound to one transaction. Hooks collects callbacks that the
// unit of work runs once the transaction outcome is known.
type Repos struct {
	Loans     loan.Repository
	Approvals approval.Repository
	Products  product.Repository
	Hooks     *Hooks
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
