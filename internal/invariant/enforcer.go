// Package invariant asserts cross-aggregate business rules at write time.
// Enforcer calls run inside the caller's transaction so the asserted state
// cannot change between the check and the dependent write.
package invariant

import (
	"context"

	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/requestcontext"
)

// AssignmentStore is the slice of the group store the enforcer needs.
type AssignmentStore interface {
	IsCurrentBuyer(ctx context.Context, tenantID id.TenantID, groupID id.GroupID, partyID id.PartyID, forShare bool) (bool, error)
}

// Enforcer asserts identity-model invariants for writing services.
type Enforcer struct {
	assignments AssignmentStore
}

// New constructs an Enforcer over the group assignment store.
func New(assignments AssignmentStore) *Enforcer {
	return &Enforcer{assignments: assignments}
}

// AssertBuyerOfGroup fails with InvariantViolation(NOT_A_GROUP_BUYER) unless
// the Party is a current buyer of the group within the request tenant.
// Another tenant's assignment never satisfies the invariant.
//
// Must be called inside the transaction of the write it protects: the check
// reads the assignment FOR SHARE, so a concurrent removal either commits
// first (and this assertion fails) or blocks until the protected write
// commits. Either way no write lands against a removed buyer.
func (e *Enforcer) AssertBuyerOfGroup(ctx context.Context, groupID id.GroupID, partyID id.PartyID) error {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "tenant scope is required")
	}
	if groupID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "group id is required")
	}
	if partyID.IsNil() {
		return dErrors.NewWithReason(dErrors.CodeInvariantViolation, "NOT_A_GROUP_BUYER", "party is not a current buyer of the group")
	}
	current, err := e.assignments.IsCurrentBuyer(ctx, tenantID, groupID, partyID, true)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check group buyer")
	}
	if !current {
		return dErrors.NewWithReason(dErrors.CodeInvariantViolation, "NOT_A_GROUP_BUYER", "party is not a current buyer of the group")
	}
	return nil
}
