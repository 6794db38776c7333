package loan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/approval"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/auth"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/notification"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/product"
	"github.com/martabakCode/lofi-backend-sub001/internal/domain/uow"
	"github.com/martabakCode/lofi-backend-sub001/internal/infrastructure/logging"
	"github.com/martabakCode/lofi-backend-sub001/internal/testutil/approvalmock"
	"github.com/martabakCode/lofi-backend-sub001/internal/testutil/loanmock"
	"github.com/martabakCode/lofi-backend-sub001/internal/testutil/productmock"
	"github.com/martabakCode/lofi-backend-sub001/internal/testutil/uowmock"
	"github.com/martabakCode/lofi-backend-sub001/internal/usecase/notify"

	"github.com/shopspring/decimal"
)

var (
	customer   = auth.Actor{ID: "CUST-1", Roles: []auth.Role{auth.RoleCustomer}, BranchID: "BR-1"}
	marketing  = auth.Actor{ID: "MK-1", Roles: []auth.Role{auth.RoleMarketing}, BranchID: "BR-1"}
	manager    = auth.Actor{ID: "BM-1", Roles: []auth.Role{auth.RoleBranchManager}, BranchID: "BR-1"}
	outsider   = auth.Actor{ID: "BM-2", Roles: []auth.Role{auth.RoleBranchManager}, BranchID: "BR-2"}
	backoffice = auth.Actor{ID: "BO-1", Roles: []auth.Role{auth.RoleBackoffice}}
)

// ----------------------------- in-memory store -----------------------------

// store keeps loans by value so a failed transition never leaks into it.
type store struct {
	mu        sync.Mutex
	loans     map[string]loan.Loan
	history   []approval.History
	saveErrs  []error
	appendErr error
	saves     int
	nextID    uint64
}

func newStore() *store { return &store{loans: map[string]loan.Loan{}} }

func (s *store) get(loanID string) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", loanID, loan.ErrNotFound)
	}
	return &l, nil
}

func (s *store) loanRepo() *loanmock.Repo {
	return &loanmock.Repo{
		CreateFn: func(_ context.Context, l *loan.Loan) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.nextID++
			l.ID = s.nextID
			l.CreatedAt = l.LastStatusChangedAt
			s.loans[l.LoanID] = *l
			return nil
		},
		SaveFn: func(_ context.Context, l *loan.Loan) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.saves++
			if len(s.saveErrs) > 0 {
				err := s.saveErrs[0]
				s.saveErrs = s.saveErrs[1:]
				if err != nil {
					return err
				}
			}
			if cur := s.loans[l.LoanID]; cur.Version != l.Version {
				return loan.ErrConcurrentModification
			}
			l.Version++
			s.loans[l.LoanID] = *l
			return nil
		},
		GetByLoanIDFn: func(_ context.Context, loanID string) (*loan.Loan, error) {
			return s.get(loanID)
		},
		GetByLoanIDForUpdateFn: func(_ context.Context, loanID string) (*loan.Loan, error) {
			return s.get(loanID)
		},
		ListByCustomerFn: func(_ context.Context, customerID string) ([]loan.Loan, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []loan.Loan
			for _, l := range s.loans {
				if l.CustomerID == customerID {
					out = append(out, l)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			return out, nil
		},
		SumAmountByCustomerFn: func(_ context.Context, customerID string, statuses []loan.Status) (decimal.Decimal, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			sum := decimal.Zero
			for _, l := range s.loans {
				if l.CustomerID == customerID && l.Status.IsActive() {
					sum = sum.Add(l.Amount)
				}
			}
			return sum, nil
		},
	}
}

func (s *store) approvalRepo() *approvalmock.Repo {
	return &approvalmock.Repo{
		AppendFn: func(_ context.Context, h *approval.History) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.appendErr != nil {
				return s.appendErr
			}
			s.history = append(s.history, *h)
			return nil
		},
		ListByLoanIDFn: func(_ context.Context, loanID string) ([]approval.History, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []approval.History
			for _, h := range s.history {
				if h.LoanID == loanID {
					out = append(out, h)
				}
			}
			return out, nil
		},
	}
}

func (s *store) historyOf(loanID string) []approval.History {
	rows, _ := s.approvalRepo().ListByLoanID(context.Background(), loanID)
	return rows
}

// seed stores a loan of CUST-1 in branch BR-1 directly in status st.
func (s *store) seed(loanID string, st loan.Status, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.loans[loanID] = loan.Loan{
		ID:         s.nextID,
		LoanID:     loanID,
		CustomerID: "CUST-1",
		ProductID:  "PRD-1",
		BranchID:   "BR-1",
		Amount:     decimal.NewFromInt(amount),
		Tenor:      12,
		Status:     st,
		Stage:      loan.StageFor(st, loan.StageCustomer),
	}
}

// ----------------------------- collaborators -----------------------------

type fakeCredit struct {
	mu          sync.Mutex
	avail       decimal.Decimal
	err         error
	active      []string
	invalidated []string
}

func (c *fakeCredit) Available(context.Context, string, string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avail, c.err
}

func (c *fakeCredit) ActiveLoans(context.Context, string) ([]string, error) {
	return c.active, nil
}

func (c *fakeCredit) Invalidate(_ context.Context, customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, customerID)
}

func (c *fakeCredit) invalidations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}

type recordingSink struct {
	mu    sync.Mutex
	got   []notification.LoanStatusChanged
	err   error
	calls chan struct{}
}

func (s *recordingSink) NotifyStatusChange(_ context.Context, ev notification.LoanStatusChanged) error {
	s.mu.Lock()
	s.got = append(s.got, ev)
	err := s.err
	s.mu.Unlock()
	s.calls <- struct{}{}
	return err
}

func (s *recordingSink) to(status loan.Status) []notification.LoanStatusChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.LoanStatusChanged
	for _, ev := range s.got {
		if ev.ToStatus == status {
			out = append(out, ev)
		}
	}
	return out
}

// ----------------------------- fixture -----------------------------

type fixture struct {
	store  *store
	credit *fakeCredit
	sink   *recordingSink
	disp   *notify.Dispatcher
	uc     *Usecase
	clock  time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  newStore(),
		credit: &fakeCredit{avail: decimal.NewFromInt(10_000_000)},
		sink:   &recordingSink{calls: make(chan struct{}, 128)},
		clock:  time.Date(2025, 9, 6, 9, 0, 0, 0, time.UTC),
	}
	f.disp = notify.New(f.sink, notify.Config{Workers: 1}, logging.Discard())
	t.Cleanup(func() { f.closeDispatcher(t) })

	products := productmock.Static(product.Product{
		ProductID:     "PRD-1",
		MaxLoanAmount: decimal.NewFromInt(10_000_000),
		MinTenor:      3,
		MaxTenor:      24,
	})
	loans := f.store.loanRepo()
	approvals := f.store.approvalRepo()

	all := append([]Option{
		WithLogger(logging.Discard()),
		WithClock(func() time.Time {
			f.clock = f.clock.Add(time.Minute)
			return f.clock
		}),
	}, opts...)
	f.uc = NewUsecase(Deps{
		Loans:     loans,
		Approvals: approvals,
		Products:  products,
		UoW:       uowmock.Committing(uow.Repos{Loans: loans, Approvals: approvals, Products: products}),
		Credit:    f.credit,
		Events:    f.disp,
	}, all...)
	return f
}

func (f *fixture) closeDispatcher(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.disp.Close(ctx); err != nil {
		t.Fatalf("dispatcher close: %v", err)
	}
}

func (f *fixture) waitNotifications(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.sink.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d notifications, want %d", i, n)
		}
	}
}
