package loan

import "time"

// Action is the closed set of workflow actions a loan accepts.
type Action string

const (
	ActionApply    Action = "apply"
	ActionSubmit   Action = "submit"
	ActionReview   Action = "review"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionDisburse Action = "disburse"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionRollback Action = "rollback"
)

// Actions lists every action, apply included.
var Actions = []Action{
	ActionApply, ActionSubmit, ActionReview, ActionApprove, ActionReject,
	ActionDisburse, ActionComplete, ActionCancel, ActionRollback,
}

func (a Action) Valid() bool {
	for _, x := range Actions {
		if x == a {
			return true
		}
	}
	return false
}

type transition struct {
	from []Status
	to   Status
}

// forward is the only set of legal forward moves. apply has no "from" state
// and rollback is resolved through rollbackTo.
var forward = map[Action]transition{
	ActionSubmit:   {from: []Status{StatusDraft}, to: StatusSubmitted},
	ActionReview:   {from: []Status{StatusSubmitted}, to: StatusReviewed},
	ActionApprove:  {from: []Status{StatusReviewed}, to: StatusApproved},
	ActionReject:   {from: []Status{StatusSubmitted, StatusReviewed}, to: StatusRejected},
	ActionDisburse: {from: []Status{StatusApproved}, to: StatusDisbursed},
	ActionComplete: {from: []Status{StatusDisbursed}, to: StatusCompleted},
	ActionCancel:   {from: []Status{StatusDraft, StatusSubmitted, StatusReviewed, StatusApproved}, to: StatusCancelled},
}

// rollbackTo reverses submit, review and approve. Disbursed money is never rolled back.
var rollbackTo = map[Status]Status{
	StatusSubmitted: StatusDraft,
	StatusReviewed:  StatusSubmitted,
	StatusApproved:  StatusReviewed,
}

// Next returns the status produced by applying a to a loan in status from.
// It has no side effects.
func Next(from Status, a Action) (Status, error) {
	if a == ActionRollback {
		if to, ok := rollbackTo[from]; ok {
			return to, nil
		}
		return "", &TransitionError{Action: a, Status: from}
	}
	t, ok := forward[a]
	if !ok {
		return "", &TransitionError{Action: a, Status: from}
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return "", &TransitionError{Action: a, Status: from}
}

// Allowed lists the actions a loan in status s accepts.
func Allowed(s Status) []Action {
	var out []Action
	for _, a := range Actions {
		if _, err := Next(s, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

type Options struct {
	// CancelSetsRejectedAt keeps stamping RejectedAt on cancellation for
	// reports that still read that column.
	CancelSetsRejectedAt bool
}

// Transition validates a against the loan's status and, on success, moves the
// loan and stamps the milestone timestamp. It returns the previous status.
func (l *Loan) Transition(a Action, now time.Time, opts Options) (Status, error) {
	from := l.Status
	to, err := Next(from, a)
	if err != nil {
		return from, err
	}
	l.Status = to
	l.Stage = StageFor(to, l.Stage)
	l.LastStatusChangedAt = now

	switch to {
	case StatusSubmitted:
		stamp(&l.SubmittedAt, now)
	case StatusApproved:
		stamp(&l.ApprovedAt, now)
	case StatusRejected:
		stamp(&l.RejectedAt, now)
	case StatusDisbursed:
		stamp(&l.DisbursedAt, now)
	case StatusCompleted:
		stamp(&l.CompletedAt, now)
	case StatusCancelled:
		stamp(&l.CancelledAt, now)
		if opts.CancelSetsRejectedAt {
			stamp(&l.RejectedAt, now)
		}
	}
	return from, nil
}

// stamp sets a milestone once; later transitions never overwrite it.
func stamp(dst **time.Time, now time.Time) {
	if *dst == nil {
		t := now
		*dst = &t
	}
}

// NewDraft builds a DRAFT loan. It bypasses the transition table since there is no prior status.
func NewDraft(loanID, customerID, productID, branchID string, in Terms, now time.Time) *Loan {
	return &Loan{
		LoanID:              loanID,
		CustomerID:          customerID,
		ProductID:           productID,
		BranchID:            branchID,
		Amount:              in.Amount,
		Tenor:               in.Tenor,
		Status:              StatusDraft,
		Stage:               StageCustomer,
		LastStatusChangedAt: now,
	}
}
