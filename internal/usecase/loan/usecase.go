package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/auth"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/uow"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/metrics"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/credit"
	"github.com/martabakCode/lofi-backend-sub001/pkg/id"

	"github.com/shopspring/decimal"
)

// CreditEngine is the availability cache the workflow reads and invalidates.
type CreditEngine interface {
	Available(ctx context.Context, customerID, productID string) (decimal.Decimal, error)
	ActiveLoans(ctx context.Context, customerID string) ([]string, error)
	Invalidate(ctx context.Context, customerID string)
}

// EventQueue defers a status change until the transaction behind hooks commits.
type EventQueue interface {
	Enqueue(hooks *uow.Hooks, ev notification.LoanStatusChanged)
}

type Deps struct {
	Loans     loan.Repository
	Approvals approval.Repository
	Products  product.Repository
	UoW       uow.UnitOfWork
	Credit    CreditEngine
	Events    EventQueue
}

// Usecase runs every loan workflow action: gate, state machine, save,
// ledger, cache invalidation and a commit-scoped event, in one transaction.
type Usecase struct {
	Deps
	opts loan.Options
	now  func() time.Time
	log  *slog.Logger
}

type Option func(*Usecase)

func WithClock(now func() time.Time) Option {
	return func(u *Usecase) { u.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(u *Usecase) { u.log = l }
}

// WithCancelSetsRejectedAt keeps stamping RejectedAt on cancellation.
func WithCancelSetsRejectedAt(on bool) Option {
	return func(u *Usecase) { u.opts.CancelSetsRejectedAt = on }
}

func NewUsecase(d Deps, opts ...Option) *Usecase {
	u := &Usecase{
		Deps: d,
		opts: loan.Options{CancelSetsRejectedAt: true},
		now:  func() time.Time { return time.Now().UTC() },
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Apply creates a DRAFT loan after checking the product and the customer's plafond.
// The loan takes the applying actor's branch; nothing reassigns it later.
func (u *Usecase) Apply(ctx context.Context, a auth.Actor, in ApplyInput) (*LoanDTO, error) {
	if in.CustomerID == "" && a.IsCustomerOnly() {
		in.CustomerID = a.ID
	}
	if err := auth.AuthorizeApply(a, in.CustomerID); err != nil {
		u.count(loan.ActionApply, err)
		return nil, err
	}
	if err := u.validateApply(ctx, in); err != nil {
		u.count(loan.ActionApply, err)
		return nil, err
	}

	now := u.now()
	l := loan.NewDraft(id.NewID32(), in.CustomerID, in.ProductID, a.BranchID,
		loan.Terms{Amount: in.Amount, Tenor: in.Tenor}, now)

	err := u.UoW.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		return u.record(ctx, r, l, nil, loan.ActionApply, a.ID, in.Notes, now)
	})
	u.count(loan.ActionApply, err)
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "loan applied", "loan_id", l.LoanID, "customer_id", l.CustomerID, "actor", a.ID)
	return toDTO(l), nil
}

func (u *Usecase) validateApply(ctx context.Context, in ApplyInput) error {
	if in.CustomerID == "" || in.ProductID == "" {
		return fmt.Errorf("%w: customer and product are required", loan.ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", loan.ErrInvalidInput)
	}
	p, err := u.Products.GetByProductID(ctx, in.ProductID)
	if err != nil {
		return err
	}
	if !p.AcceptsTenor(in.Tenor) {
		return fmt.Errorf("%w: tenor %d outside %d..%d months", loan.ErrInvalidInput, in.Tenor, p.MinTenor, p.MaxTenor)
	}
	avail, err := u.Credit.Available(ctx, in.CustomerID, in.ProductID)
	if err != nil {
		return err
	}
	if in.Amount.GreaterThan(avail) {
		return fmt.Errorf("%w: requested %s, available %s", loan.ErrExceedsPlafond, in.Amount, avail)
	}
	return nil
}

func (u *Usecase) Submit(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionSubmit, notes)
}

func (u *Usecase) Review(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionReview, notes)
}

// Approve re-checks the plafond inside the transaction before committing.
func (u *Usecase) Approve(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionApprove, notes)
}

func (u *Usecase) Reject(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionReject, notes)
}

func (u *Usecase) Disburse(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionDisburse, notes)
}

func (u *Usecase) Complete(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionComplete, notes)
}

func (u *Usecase) Cancel(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionCancel, notes)
}

// Rollback sends the loan one step back; milestone timestamps already set are kept.
func (u *Usecase) Rollback(ctx context.Context, a auth.Actor, loanID, notes string) (*LoanDTO, error) {
	return u.transition(ctx, a, loanID, loan.ActionRollback, notes)
}

// Do runs any non-apply action by name.
func (u *Usecase) Do(ctx context.Context, a auth.Actor, action loan.Action, loanID, notes string) (*LoanDTO, error) {
	if !action.Valid() || action == loan.ActionApply {
		return nil, fmt.Errorf("%w: unknown action %q", loan.ErrInvalidInput, action)
	}
	return u.transition(ctx, a, loanID, action, notes)
}

// transition retries once on a version conflict with a fresh read.
func (u *Usecase) transition(ctx context.Context, a auth.Actor, loanID string, action loan.Action, notes string) (*LoanDTO, error) {
	out, err := u.attempt(ctx, a, loanID, action, notes)
	if errors.Is(err, loan.ErrConcurrentModification) {
		u.log.InfoContext(ctx, "retrying after concurrent modification", "loan_id", loanID, "action", action)
		out, err = u.attempt(ctx, a, loanID, action, notes)
	}
	u.count(action, err)
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "loan transitioned",
		"loan_id", loanID, "action", action, "to_status", out.Status, "actor", a.ID)
	return out, nil
}

func (u *Usecase) attempt(ctx context.Context, a auth.Actor, loanID string, action loan.Action, notes string) (*LoanDTO, error) {
	var out *LoanDTO
	err := u.UoW.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		if err := auth.Authorize(a, action, l); err != nil {
			return err
		}
		now := u.now()
		from, err := l.Transition(action, now, u.opts)
		if err != nil {
			return err
		}
		if action == loan.ActionApprove {
			if err := checkPlafond(ctx, r, l); err != nil {
				return err
			}
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := u.record(ctx, r, l, &from, action, a.ID, notes, now); err != nil {
			return err
		}
		out = toDTO(l)
		return nil
	})
	return out, err
}

// checkPlafond reads through the transaction's repositories; l is not yet
// active so it does not count against itself.
func checkPlafond(ctx context.Context, r uow.Repos, l *loan.Loan) error {
	avail, err := credit.Compute(ctx, r.Loans, r.Products, l.CustomerID, l.ProductID)
	if err != nil {
		return err
	}
	if l.Amount.GreaterThan(avail) {
		return fmt.Errorf("%w: loan %s needs %s, available %s", loan.ErrExceedsPlafond, l.LoanID, l.Amount, avail)
	}
	return nil
}

// record appends the ledger entry, evicts cached availability now and again
// after commit, and queues the status change for after commit.
func (u *Usecase) record(ctx context.Context, r uow.Repos, l *loan.Loan, from *loan.Status, action loan.Action, actor, notes string, now time.Time) error {
	if err := r.Approvals.Append(ctx, approval.NewEntry(l.LoanID, from, l.Status, action, actor, notes, now)); err != nil {
		return err
	}

	customerID := l.CustomerID
	u.Credit.Invalidate(ctx, customerID)
	if r.Hooks == nil {
		return nil
	}
	r.Hooks.AfterCommit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		u.Credit.Invalidate(ctx, customerID)
	})
	if u.Events != nil {
		u.Events.Enqueue(r.Hooks, notification.NewLoanStatusChanged(l, from, action, actor, notes, now))
	}
	return nil
}

func (u *Usecase) count(action loan.Action, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.LoanTransitions.WithLabelValues(string(action), result).Inc()
}

// ----------------------------- queries -----------------------------

func (u *Usecase) Get(ctx context.Context, a auth.Actor, loanID string) (*LoanDTO, error) {
	l, err := u.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeRead(a, l); err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

// History returns the loan's ledger oldest first.
func (u *Usecase) History(ctx context.Context, a auth.Actor, loanID string) ([]HistoryDTO, error) {
	l, err := u.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeRead(a, l); err != nil {
		return nil, err
	}
	rows, err := u.Approvals.ListByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryDTO, 0, len(rows))
	for _, h := range rows {
		out = append(out, toHistoryDTO(h))
	}
	return out, nil
}

// ListByCustomer returns the customer's loans the actor may see.
func (u *Usecase) ListByCustomer(ctx context.Context, a auth.Actor, customerID string) ([]LoanDTO, error) {
	if err := auth.AuthorizeCustomerRead(a, customerID); err != nil {
		return nil, err
	}
	rows, err := u.Loans.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(rows))
	for i := range rows {
		if auth.AuthorizeRead(a, &rows[i]) != nil {
			continue
		}
		out = append(out, *toDTO(&rows[i]))
	}
	return out, nil
}

func (u *Usecase) Available(ctx context.Context, a auth.Actor, customerID, productID string) (*AvailabilityDTO, error) {
	if err := auth.AuthorizeCustomerRead(a, customerID); err != nil {
		return nil, err
	}
	v, err := u.Credit.Available(ctx, customerID, productID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityDTO{CustomerID: customerID, ProductID: productID, Available: v}, nil
}

// ActiveLoans lists the loan ids counting against the customer's plafond.
func (u *Usecase) ActiveLoans(ctx context.Context, a auth.Actor, customerID string) ([]string, error) {
	if err := auth.AuthorizeCustomerRead(a, customerID); err != nil {
		return nil, err
	}
	return u.Credit.ActiveLoans(ctx, customerID)
}
