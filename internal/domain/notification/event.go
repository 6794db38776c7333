package notification

import (
	"context"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/pkg/id"
)

const EventLoanStatusChanged = "loan.status_changed"

// LoanStatusChanged is built inside the workflow transaction and delivered
// only after that transaction commits.
type LoanStatusChanged struct {
	EventID    string       `json:"event_id"`
	LoanID     string       `json:"loan_id"`
	CustomerID string       `json:"customer_id"`
	FromStatus *loan.Status `json:"from_status"`
	ToStatus   loan.Status  `json:"to_status"`
	Action     loan.Action  `json:"action"`
	Actor      string       `json:"actor"`
	Notes      string       `json:"notes,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func NewLoanStatusChanged(l *loan.Loan, from *loan.Status, action loan.Action, actor, notes string, at time.Time) LoanStatusChanged {
	return LoanStatusChanged{
		EventID:    id.NewID32(),
		LoanID:     l.LoanID,
		CustomerID: l.CustomerID,
		FromStatus: from,
		ToStatus:   l.Status,
		Action:     action,
		Actor:      actor,
		Notes:      notes,
		OccurredAt: at,
	}
}

// Sink delivers a status change to the customer. Errors are returned to the
// caller, which must not let them reach the workflow.
type Sink interface {
	NotifyStatusChange(ctx context.Context, ev LoanStatusChanged) error
}
