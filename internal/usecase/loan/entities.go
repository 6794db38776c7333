package loan

import (
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type ApplyInput struct {
	CustomerID string          `json:"customer_id"`
	ProductID  string          `json:"product_id"`
	Amount     decimal.Decimal `json:"amount"`
	Tenor      int             `json:"tenor"`
	Notes      string          `json:"notes"`
}

type LoanDTO struct {
	LoanID         string          `json:"loan_id"`
	CustomerID     string          `json:"customer_id"`
	ProductID      string          `json:"product_id"`
	BranchID       string          `json:"branch_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Tenor          int             `json:"tenor"`
	Status         string          `json:"status"`
	Stage          string          `json:"stage"`
	AllowedActions []string        `json:"allowed_actions"`

	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty"`
	DisbursedAt         *time.Time `json:"disbursed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	LastStatusChangedAt time.Time  `json:"last_status_changed_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

type HistoryDTO struct {
	FromStatus *string   `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Action     string    `json:"action"`
	ActionBy   string    `json:"action_by"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AvailabilityDTO struct {
	CustomerID string          `json:"customer_id"`
	ProductID  string          `json:"product_id"`
	Available  decimal.Decimal `json:"available"`
}

func toDTO(l *loan.Loan) *LoanDTO {
	allowed := loan.Allowed(l.Status)
	actions := make([]string, 0, len(allowed))
	for _, a := range allowed {
		actions = append(actions, string(a))
	}
	return &LoanDTO{
		LoanID:              l.LoanID,
		CustomerID:          l.CustomerID,
		ProductID:           l.ProductID,
		BranchID:            l.BranchID,
		Amount:              l.Amount,
		Tenor:               l.Tenor,
		Status:              string(l.Status),
		Stage:               string(l.Stage),
		AllowedActions:      actions,
		SubmittedAt:         l.SubmittedAt,
		ApprovedAt:          l.ApprovedAt,
		RejectedAt:          l.RejectedAt,
		DisbursedAt:         l.DisbursedAt,
		CancelledAt:         l.CancelledAt,
		CompletedAt:         l.CompletedAt,
		LastStatusChangedAt: l.LastStatusChangedAt,
		CreatedAt:           l.CreatedAt,
	}
}

func toHistoryDTO(h approval.History) HistoryDTO {
	var from *string
	if h.FromStatus != nil {
		s := string(*h.FromStatus)
		from = &s
	}
	return HistoryDTO{
		FromStatus: from,
		ToStatus:   string(h.ToStatus),
		Action:     string(h.Action),
		ActionBy:   h.ActionBy,
		Notes:      h.Notes,
		CreatedAt:  h.CreatedAt,
	}
}
