package approval

import (
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
)

// History is one ledger row per status transition. Rows are append-only;
// ordered by CreatedAt they form a walk over the legal transition graph.
type History struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LoanID string `gorm:"column:loan_id;size:32;not null;index:idx_approval_histories_loan" json:"loan_id"`
	// FromStatus is nil only for the DRAFT creation entry.
	FromStatus *loan.Status `gorm:"column:from_status;size:16" json:"from_status"`
	ToStatus   loan.Status  `gorm:"column:to_status;size:16;not null" json:"to_status"`
	Action     loan.Action  `gorm:"column:action;size:16;not null" json:"action"`
	ActionBy   string       `gorm:"column:action_by;size:64;not null" json:"action_by"`
	Notes      string       `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt  time.Time    `gorm:"column:created_at;index:idx_approval_histories_loan" json:"created_at"`
}

func (History) TableName() string { return "approval_histories" }

// NewEntry builds the ledger row for a transition.
func NewEntry(loanID string, from *loan.Status, to loan.Status, action loan.Action, actor, notes string, at time.Time) *History {
	return &History{
		LoanID:     loanID,
		FromStatus: from,
		ToStatus:   to,
		Action:     action,
		ActionBy:   actor,
		Notes:      notes,
		CreatedAt:  at,
	}
}
