package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
	"github.com/martabakCode/lofi-backend-sub001/pkg/id"

	"github.com/shopspring/decimal"
)

func makeLoan(loanID, customerID string, amount int64, status domain.Status) *domain.Loan {
	l := domain.NewDraft(loanID, customerID, "PRD-1", "BR-1",
		domain.Terms{Amount: decimal.NewFromInt(amount), Tenor: 12}, time.Now().UTC())
	l.Status = status
	return l
}

func TestCreateAndGetByLoanID(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	customer := id.NewID32()

	l := makeLoan(loanID, customer, 1_000_000, domain.StatusDraft)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.ID == 0 {
		t.Fatalf("Create did not set auto-increment ID")
	}

	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.LoanID != loanID || got.CustomerID != customer {
		t.Errorf("unexpected loan: %+v", got)
	}
	if !got.Amount.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("amount = %s, want 1000000", got.Amount)
	}
	if got.Status != domain.StatusDraft || got.Stage != domain.StageCustomer {
		t.Errorf("status/stage = %s/%s", got.Status, got.Stage)
	}
}

func TestGetByLoanID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)

	_, err := repo.GetByLoanID(context.Background(), "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = repo.GetByLoanIDForUpdate(context.Background(), "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("for update: expected ErrNotFound, got %v", err)
	}
}

func TestSave_BumpsVersionAndPersistsTransition(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	l := makeLoan(loanID, "dddddddddddddddddddddddddddddddd", 2_000_000, domain.StatusDraft)
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := l.Transition(domain.ActionSubmit, time.Now().UTC(), domain.Options{}); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := repo.Save(ctx, l); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if l.Version != 1 {
		t.Fatalf("in-memory version = %d, want 1", l.Version)
	}

	got, err := repo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.Status != domain.StatusSubmitted || got.Stage != domain.StageMarketing || got.SubmittedAt == nil {
		t.Errorf("transition not persisted: %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("stored version = %d, want 1", got.Version)
	}
}

func TestSave_StaleVersionIsConcurrentModification(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	loanID := id.NewID32()
	if err := repo.Create(ctx, makeLoan(loanID, "ffffffffffffffffffffffffffffffff", 1_000_000, domain.StatusReviewed)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := repo.GetByLoanID(ctx, loanID)
	second, _ := repo.GetByLoanID(ctx, loanID)

	now := time.Now().UTC()
	if _, err := first.Transition(domain.ActionApprove, now, domain.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	if _, err := second.Transition(domain.ActionReject, now, domain.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, second); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("second save: want ErrConcurrentModification, got %v", err)
	}

	got, _ := repo.GetByLoanID(ctx, loanID)
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want APPROVED (winner)", got.Status)
	}
}

func TestActiveQueries(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	c1 := "11111111111111111111111111111111"
	seed := []*domain.Loan{
		makeLoan(id.NewID32(), c1, 4_000_000, domain.StatusApproved),
		makeLoan(id.NewID32(), c1, 1_500_000, domain.StatusDisbursed),
		makeLoan(id.NewID32(), c1, 9_000_000, domain.StatusSubmitted),
		makeLoan(id.NewID32(), c1, 3_000_000, domain.StatusCompleted),
		makeLoan(id.NewID32(), "22222222222222222222222222222222", 7_000_000, domain.StatusApproved),
	}
	for _, l := range seed {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	active, err := repo.FindActiveByCustomer(ctx, c1, domain.ActiveStatuses)
	if err != nil {
		t.Fatalf("FindActiveByCustomer: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active loans = %d, want 2", len(active))
	}

	sum, err := repo.SumAmountByCustomer(ctx, c1, domain.ActiveStatuses)
	if err != nil {
		t.Fatalf("SumAmountByCustomer: %v", err)
	}
	if !sum.Equal(decimal.NewFromInt(5_500_000)) {
		t.Fatalf("sum = %s, want 5500000", sum)
	}

	none, err := repo.SumAmountByCustomer(ctx, "33333333333333333333333333333333", domain.ActiveStatuses)
	if err != nil {
		t.Fatalf("SumAmountByCustomer (empty): %v", err)
	}
	if !none.IsZero() {
		t.Fatalf("sum for unknown customer = %s, want 0", none)
	}

	all, err := repo.ListByCustomer(ctx, c1)
	if err != nil || len(all) != 4 {
		t.Fatalf("ListByCustomer = %d, %v; want 4", len(all), err)
	}
}
