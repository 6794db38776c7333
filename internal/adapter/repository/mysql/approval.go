package mysql

import (
	"context"

	approvalDomain "github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"

	"gorm.io/gorm"
)

type ApprovalRepository struct{ db *gorm.DB }

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository { return &ApprovalRepository{db: db} }

func (r *ApprovalRepository) Append(ctx context.Context, h *approvalDomain.History) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *ApprovalRepository) ListByLoanID(ctx context.Context, loanID string) ([]approvalDomain.History, error) {
	var out []approvalDomain.History
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}
