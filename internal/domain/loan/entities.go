package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusReviewed  Status = "REVIEWED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDisbursed Status = "DISBURSED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ActiveStatuses are the statuses whose amount counts against a customer's plafond.
var ActiveStatuses = []Status{StatusApproved, StatusDisbursed}

func (s Status) IsActive() bool { return s == StatusApproved || s == StatusDisbursed }

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// Stage is the organizational actor currently responsible for a loan.
type Stage string

const (
	StageCustomer      Stage = "CUSTOMER"
	StageMarketing     Stage = "MARKETING"
	StageBranchManager Stage = "BRANCH_MANAGER"
	StageBackoffice    Stage = "BACKOFFICE"
)

// StageFor derives the stage from a status. Rejected and cancelled loans keep
// the stage they were in when they left the pipeline.
func StageFor(s Status, current Stage) Stage {
	switch s {
	case StatusDraft:
		return StageCustomer
	case StatusSubmitted:
		return StageMarketing
	case StatusReviewed:
		return StageBranchManager
	case StatusApproved, StatusDisbursed, StatusCompleted:
		return StageBackoffice
	default:
		return current
	}
}

type Loan struct {
	ID         uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID     string          `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	CustomerID string          `gorm:"size:32;index:idx_loans_customer_status,priority:1" json:"customer_id"`
	ProductID  string          `gorm:"size:32;index" json:"product_id"`
	BranchID   string          `gorm:"size:32;index" json:"branch_id,omitempty"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Tenor      int             `gorm:"column:tenor" json:"tenor"`
	Status     Status          `gorm:"size:16;index:idx_loans_customer_status,priority:2" json:"status"`
	Stage      Stage           `gorm:"size:16" json:"stage"`

	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty"`
	DisbursedAt         *time.Time `json:"disbursed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	LastStatusChangedAt time.Time  `json:"last_status_changed_at"`

	// Version guards against lost updates; Save only succeeds against the version it read.
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// Owned reports whether customerID is the loan's own customer.
func (l *Loan) Owned(customerID string) bool {
	return customerID != "" && l.CustomerID == customerID
}

// Terms are the customer-requested amount and tenor (months).
type Terms struct {
	Amount decimal.Decimal
	Tenor  int
}
