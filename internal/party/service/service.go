// Package service implements the identity resolver and the legacy
// projection over the party store.
package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"studbook/internal/audit"
	partymetrics "studbook/internal/party/metrics"
	"studbook/internal/party/models"
	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/platform/sentinel"
	"studbook/pkg/requestcontext"
)

// Resolution outcome labels for metrics.
const (
	outcomeResolved    = "resolved"
	outcomeEmpty       = "empty"
	outcomeMissing     = "missing"
	outcomeUnlinked    = "unlinked"
	outcomeCrossTenant = "cross_tenant"
)

// Service is the identity core: party lifecycle, legacy resolution, and
// batched backing lookups.
type Service struct {
	store   PartyStore
	tx      TxRunner
	metrics *partymetrics.Metrics
	audit   *audit.Recorder
	log     *log.Logger
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithTx sets the transaction runner (required for postgres-backed setups).
func WithTx(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

// WithMetrics attaches the party metrics set.
func WithMetrics(m *partymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit attaches the operator-review recorder.
func WithAudit(r *audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

// WithLogger sets the logger for data-integrity findings.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New constructs the party service.
func New(store PartyStore, opts ...Option) *Service {
	s := &Service{store: store, tx: passthroughTx{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tenantScope extracts the tenant from context, failing closed when absent.
func tenantScope(ctx context.Context) (id.TenantID, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return id.TenantID{}, dErrors.New(dErrors.CodeUnauthorized, "tenant scope is required")
	}
	return tenantID, nil
}

// PersonInput carries the fields for an explicit person creation.
type PersonInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// OrganizationInput carries the fields for an explicit organization creation.
type OrganizationInput struct {
	Name               string
	RegistrationNumber string
	VATNumber          string
	Email              string
	Phone              string
	Address            string
}

// CreatePerson mints a Party of kind PERSON and its backing person record in
// one transaction, so the 1:1 invariant holds from the first committed state.
func (s *Service) CreatePerson(ctx context.Context, input PersonInput) (*models.Person, error) {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	person := &models.Person{
		ID:        id.PersonID(uuid.New()),
		TenantID:  tenantID,
		PartyID:   id.PartyID(uuid.New()),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
		Address:   input.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	party, err := models.NewParty(person.PartyID, tenantID, models.KindPerson, person.DisplayName(), input.Email, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateParty(txCtx, party); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create party")
		}
		if err := s.store.CreatePerson(txCtx, person); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "person already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create person")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

// CreateOrganization mirrors CreatePerson for kind ORGANIZATION.
func (s *Service) CreateOrganization(ctx context.Context, input OrganizationInput) (*models.Organization, error) {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	org := &models.Organization{
		ID:                 id.OrganizationID(uuid.New()),
		TenantID:           tenantID,
		PartyID:            id.PartyID(uuid.New()),
		Name:               input.Name,
		RegistrationNumber: input.RegistrationNumber,
		VATNumber:          input.VATNumber,
		Email:              input.Email,
		Phone:              input.Phone,
		Address:            input.Address,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	party, err := models.NewParty(org.PartyID, tenantID, models.KindOrganization, org.Name, input.Email, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateParty(txCtx, party); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create party")
		}
		if err := s.store.CreateOrganization(txCtx, org); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "organization already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create organization")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// DeletePerson removes a person backing record and its Party. Rejected while
// any referencing row still points at the Party (restrict-on-delete), so
// ownership history can never be silently orphaned.
func (s *Service) DeletePerson(ctx context.Context, personID id.PersonID) error {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return err
	}
	person, err := s.store.FindPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find person")
	}
	if person.TenantID != tenantID {
		return dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.DeletePersonAndParty(txCtx, personID, person.PartyID); err != nil {
			if errors.Is(err, sentinel.ErrReferenced) {
				return dErrors.NewWithReason(dErrors.CodeInvariantViolation, "PARTY_STILL_REFERENCED", "party is still referenced by domain records")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "person not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete person")
		}
		return nil
	})
}

// DeleteOrganization mirrors DeletePerson for organizations.
func (s *Service) DeleteOrganization(ctx context.Context, orgID id.OrganizationID) error {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return err
	}
	org, err := s.store.FindOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find organization")
	}
	if org.TenantID != tenantID {
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.DeleteOrganizationAndParty(txCtx, orgID, org.PartyID); err != nil {
			if errors.Is(err, sentinel.ErrReferenced) {
				return dErrors.NewWithReason(dErrors.CodeInvariantViolation, "PARTY_STILL_REFERENCED", "party is still referenced by domain records")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "organization not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete organization")
		}
		return nil
	})
}

// Resolve normalizes a legacy dual reference to the canonical party id.
//
// Semantics, in order:
//   - empty ref resolves to the zero PartyID with no error
//   - organization wins when both fields are set (documented precedence
//     carried over from the legacy write path; business intent unverified,
//     do not "fix" without a product decision)
//   - a ref whose backing row lives in another tenant fails closed with
//     AMBIGUOUS_REFERENCE
//   - a missing backing row, or one not yet linked to a Party, resolves to
//     the zero PartyID with no error; the gap is logged and counted
//
// Resolve is read-only and safe inside a caller's transaction.
func (s *Service) Resolve(ctx context.Context, ref models.LegacyRef) (id.PartyID, error) {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return id.PartyID{}, err
	}
	if ref.IsEmpty() {
		s.metrics.RecordResolution(outcomeEmpty)
		return id.PartyID{}, nil
	}

	if !ref.OrganizationID.IsNil() {
		org, err := s.store.FindOrganization(ctx, ref.OrganizationID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.metrics.RecordResolution(outcomeMissing)
				return id.PartyID{}, nil
			}
			return id.PartyID{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve organization reference")
		}
		if org.TenantID != tenantID {
			s.metrics.RecordResolution(outcomeCrossTenant)
			return id.PartyID{}, dErrors.NewWithReason(dErrors.CodeAmbiguousReference, "CROSS_TENANT_REFERENCE", "legacy reference belongs to another tenant")
		}
		if org.PartyID.IsNil() {
			s.recordUnlinked(ctx, tenantID, "organization", org.ID.String())
			return id.PartyID{}, nil
		}
		s.metrics.RecordResolution(outcomeResolved)
		return org.PartyID, nil
	}

	person, err := s.store.FindPerson(ctx, ref.PersonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.RecordResolution(outcomeMissing)
			return id.PartyID{}, nil
		}
		return id.PartyID{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve person reference")
	}
	if person.TenantID != tenantID {
		s.metrics.RecordResolution(outcomeCrossTenant)
		return id.PartyID{}, dErrors.NewWithReason(dErrors.CodeAmbiguousReference, "CROSS_TENANT_REFERENCE", "legacy reference belongs to another tenant")
	}
	if person.PartyID.IsNil() {
		s.recordUnlinked(ctx, tenantID, "person", person.ID.String())
		return id.PartyID{}, nil
	}
	s.metrics.RecordResolution(outcomeResolved)
	return person.PartyID, nil
}

func (s *Service) recordUnlinked(ctx context.Context, tenantID id.TenantID, kind, backingID string) {
	s.metrics.RecordResolution(outcomeUnlinked)
	s.metrics.RecordUnresolvedLegacy()
	if s.log != nil {
		s.log.Printf("data integrity: %s %s has no party (tenant %s)", kind, backingID, tenantID)
	}
	s.audit.Record(ctx, audit.Event{
		Kind:     audit.KindUnresolvedLegacyRef,
		TenantID: tenantID.String(),
		Detail:   kind + " " + backingID + " has no party",
	})
}

// VerifyParty confirms a caller-supplied canonical id names a Party inside
// the request tenant. Unknown and cross-tenant ids both fail as NotFound so
// callers cannot distinguish other tenants' parties from absent ones.
func (s *Service) VerifyParty(ctx context.Context, partyID id.PartyID) error {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return err
	}
	if partyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	party, err := s.store.FindParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "party not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find party")
	}
	if party.TenantID != tenantID {
		s.metrics.RecordResolution(outcomeCrossTenant)
		return dErrors.New(dErrors.CodeNotFound, "party not found")
	}
	return nil
}

// BackingOf returns the concrete record behind a party id. A nil result
// with nil error means the Party is orphaned; that finding is logged and
// audited but deliberately not an error, so historical data defects cannot
// take read paths down.
func (s *Service) BackingOf(ctx context.Context, partyID id.PartyID) (*models.Backing, error) {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	if partyID.IsNil() {
		return nil, nil
	}
	party, err := s.store.FindParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "party not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find party")
	}
	if party.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeNotFound, "party not found")
	}
	return s.backingOfParty(ctx, party)
}

func (s *Service) backingOfParty(ctx context.Context, party *models.Party) (*models.Backing, error) {
	switch party.Kind {
	case models.KindPerson:
		person, err := s.store.FindPersonByParty(ctx, party.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.recordOrphan(ctx, party)
				return nil, nil
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find person backing")
		}
		return &models.Backing{Kind: models.KindPerson, Person: person}, nil
	case models.KindOrganization:
		org, err := s.store.FindOrganizationByParty(ctx, party.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.recordOrphan(ctx, party)
				return nil, nil
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find organization backing")
		}
		return &models.Backing{Kind: models.KindOrganization, Organization: org}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInternal, "party has unknown kind")
	}
}

func (s *Service) recordOrphan(ctx context.Context, party *models.Party) {
	s.metrics.RecordOrphanedParty()
	if s.log != nil {
		s.log.Printf("data integrity: party %s (kind %s) has no backing record", party.ID, party.Kind)
	}
	s.audit.Record(ctx, audit.Event{
		Kind:     audit.KindOrphanedParty,
		TenantID: party.TenantID.String(),
		PartyID:  party.ID.String(),
		Detail:   "party of kind " + string(party.Kind) + " has no backing record",
	})
}

// BackingOfMany resolves a page of party ids with one query per kind
// instead of one per row. Orphaned parties are recorded and absent from the
// result map; parties outside the tenant scope are silently absent.
func (s *Service) BackingOfMany(ctx context.Context, partyIDs []id.PartyID) (map[id.PartyID]*models.Backing, error) {
	tenantID, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[id.PartyID]*models.Backing, len(partyIDs))
	unique := dedupe(partyIDs)
	if len(unique) == 0 {
		return out, nil
	}
	s.metrics.ObserveBatchSize(len(unique))

	parties, err := s.store.PartiesByID(ctx, unique)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch find parties")
	}

	var personParties, orgParties []id.PartyID
	for _, party := range parties {
		if party.TenantID != tenantID {
			continue
		}
		switch party.Kind {
		case models.KindPerson:
			personParties = append(personParties, party.ID)
		case models.KindOrganization:
			orgParties = append(orgParties, party.ID)
		}
	}

	persons, err := s.store.PersonsByParty(ctx, personParties)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch find persons")
	}
	for _, person := range persons {
		out[person.PartyID] = &models.Backing{Kind: models.KindPerson, Person: person}
	}

	orgs, err := s.store.OrganizationsByParty(ctx, orgParties)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch find organizations")
	}
	for _, org := range orgs {
		out[org.PartyID] = &models.Backing{Kind: models.KindOrganization, Organization: org}
	}

	for _, party := range parties {
		if party.TenantID != tenantID {
			continue
		}
		if _, ok := out[party.ID]; !ok {
			s.recordOrphan(ctx, party)
		}
	}
	return out, nil
}

func dedupe(ids []id.PartyID) []id.PartyID {
	seen := make(map[id.PartyID]struct{}, len(ids))
	out := make([]id.PartyID, 0, len(ids))
	for _, pid := range ids {
		if pid.IsNil() {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}
	return out
}
