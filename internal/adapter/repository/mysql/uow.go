package mysql

import (
	"context"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func repos(tx *gorm.DB, hooks *uow.Hooks) uow.Repos {
	return uow.Repos{
		Loans:     &LoanRepository{db: tx},
		Approvals: &ApprovalRepository{db: tx},
		Products:  &ProductRepository{db: tx},
		Hooks:     hooks,
	}
}

// WithinTx runs fn in one transaction. Commit hooks fire only after the
// commit succeeded; rollback hooks fire on any error, commit failure included.
func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	hooks := uow.NewHooks()
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repos(tx, hooks))
	})
	hooks.Finish(err)
	return err
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.WithinTx(ctx, func(r uow.Repos) error {
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}
