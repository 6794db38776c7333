package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	loanDomain "github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// Save writes the mutable workflow columns guarded by the version the caller read.
func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&loanDomain.Loan{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(map[string]any{
			"status":                 l.Status,
			"stage":                  l.Stage,
			"branch_id":              l.BranchID,
			"submitted_at":           l.SubmittedAt,
			"approved_at":            l.ApprovedAt,
			"rejected_at":            l.RejectedAt,
			"disbursed_at":           l.DisbursedAt,
			"cancelled_at":           l.CancelledAt,
			"completed_at":           l.CompletedAt,
			"last_status_changed_at": l.LastStatusChangedAt,
			"version":                l.Version + 1,
			"updated_at":             now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("loan %s at version %d: %w", l.LoanID, l.Version, loanDomain.ErrConcurrentModification)
	}
	l.Version++
	l.UpdatedAt = now
	return nil
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, loanID)
	}
	return &out, nil
}

func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out)
	if res.Error != nil {
		return nil, notFound(res.Error, loanID)
	}
	return &out, nil
}

func (r *LoanRepository) ListByCustomer(ctx context.Context, customerID string) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}

func (r *LoanRepository) FindActiveByCustomer(ctx context.Context, customerID string, statuses []loanDomain.Status) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, statuses).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

func (r *LoanRepository) SumAmountByCustomer(ctx context.Context, customerID string, statuses []loanDomain.Status) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&loanDomain.Loan{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("customer_id = ? AND status IN ?", customerID, statuses).
		Row().
		Scan(&sum)
	return sum, err
}

func notFound(err error, loanID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loan %s: %w", loanID, loanDomain.ErrNotFound)
	}
	return err
}
