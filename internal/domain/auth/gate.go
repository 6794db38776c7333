package auth

import (
	"errors"
	"fmt"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/loan"
)

var ErrDenied = errors.New("authorization denied")

type DeniedError struct{ Reason string }

func (e *DeniedError) Error() string {
	return "authorization denied: " + e.Reason
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

func deny(format string, args ...any) error {
	return &DeniedError{Reason: fmt.Sprintf(format, args...)}
}

// rolesFor is the static action → permitted roles table. Admins bypass it.
var rolesFor = map[loan.Action][]Role{
	loan.ActionApply:    {RoleCustomer, RoleMarketing},
	loan.ActionSubmit:   {RoleCustomer, RoleMarketing},
	loan.ActionReview:   {RoleMarketing},
	loan.ActionApprove:  {RoleBranchManager},
	loan.ActionReject:   {RoleBranchManager, RoleMarketing},
	loan.ActionDisburse: {RoleBackoffice},
	loan.ActionComplete: {RoleBackoffice},
	loan.ActionCancel:   {RoleCustomer, RoleMarketing, RoleBranchManager},
}

// rollbackRoles: whoever currently holds the loan sends it back one step.
var rollbackRoles = map[loan.Status][]Role{
	loan.StatusSubmitted: {RoleMarketing},
	loan.StatusReviewed:  {RoleBranchManager},
	loan.StatusApproved:  {RoleBackoffice},
}

// anyRollbackRole may attempt a rollback from a status with no previous step,
// so the state machine rather than the gate rejects it.
var anyRollbackRole = []Role{RoleMarketing, RoleBranchManager, RoleBackoffice}

// PermittedRoles returns the roles allowed to run action on a loan in status current.
func PermittedRoles(action loan.Action, current loan.Status) []Role {
	if action == loan.ActionRollback {
		if roles, ok := rollbackRoles[current]; ok {
			return roles
		}
		return anyRollbackRole
	}
	return rolesFor[action]
}

// CheckRole is the role-permission check.
func CheckRole(a Actor, action loan.Action, current loan.Status) error {
	if a.IsAdmin() {
		return nil
	}
	roles := PermittedRoles(action, current)
	if len(roles) == 0 {
		return deny("no role may %s a loan in status %s", action, current)
	}
	if !a.HasAny(roles...) {
		return deny("%s requires one of %v", action, roles)
	}
	return nil
}

// CheckBranch is the branch-scoping check of actor to loan.
func CheckBranch(a Actor, l *loan.Loan) error {
	if a.IsGlobal() {
		return nil
	}
	if l.BranchID == "" && l.Owned(a.ID) {
		return nil
	}
	if a.BranchID == "" {
		return deny("actor %s has no branch assignment", a.ID)
	}
	if a.IsCustomerOnly() && !l.Owned(a.ID) {
		return deny("customer %s does not own loan %s", a.ID, l.LoanID)
	}
	if l.BranchID == "" {
		return deny("loan %s has no branch assignment", l.LoanID)
	}
	if a.BranchID != l.BranchID {
		return deny("actor branch %s does not match loan branch %s", a.BranchID, l.BranchID)
	}
	return nil
}

// Authorize runs both checks; either failing denies the request.
func Authorize(a Actor, action loan.Action, l *loan.Loan) error {
	if a.ID == "" {
		return deny("missing actor")
	}
	if err := CheckRole(a, action, l.Status); err != nil {
		return err
	}
	return CheckBranch(a, l)
}

// AuthorizeApply guards draft creation, where there is no loan yet.
func AuthorizeApply(a Actor, customerID string) error {
	if a.ID == "" {
		return deny("missing actor")
	}
	if err := CheckRole(a, loan.ActionApply, ""); err != nil {
		return err
	}
	if a.IsCustomerOnly() && customerID != a.ID {
		return deny("customer %s cannot apply on behalf of %s", a.ID, customerID)
	}
	if !a.IsGlobal() && !a.IsCustomerOnly() && a.BranchID == "" {
		return deny("actor %s has no branch assignment", a.ID)
	}
	return nil
}

// AuthorizeRead gates loan and history queries: branch scoping only.
func AuthorizeRead(a Actor, l *loan.Loan) error {
	if a.ID == "" {
		return deny("missing actor")
	}
	return CheckBranch(a, l)
}

// AuthorizeCustomerRead gates per-customer queries. Customers see only themselves.
func AuthorizeCustomerRead(a Actor, customerID string) error {
	if a.ID == "" {
		return deny("missing actor")
	}
	if len(a.Roles) == 0 {
		return deny("actor %s has no role", a.ID)
	}
	if a.IsCustomerOnly() && a.ID != customerID {
		return deny("customer %s cannot read customer %s", a.ID, customerID)
	}
	return nil
}
