// Package service implements invoice creation, the canonical write path
// through the identity model: resolve the buyer reference, assert the group
// invariant, persist per the invoices table's migration stage, all in one
// transaction.
package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"studbook/internal/billing/models"
	"studbook/internal/invariant"
	"studbook/internal/migration/engine"
	migrationmodels "studbook/internal/migration/models"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/requestcontext"
)

// InvoiceTable is the invoices table's name in the migration registry.
const InvoiceTable = "invoices"

// InvoiceStore persists invoices.
type InvoiceStore interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	Find(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
}

// Resolver is the slice of the party service this package needs.
type Resolver interface {
	Resolve(ctx context.Context, ref partymodels.LegacyRef) (id.PartyID, error)
	VerifyParty(ctx context.Context, partyID id.PartyID) error
}

// TxRunner runs a function inside a transaction carried by context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service creates and reads invoices.
type Service struct {
	store    InvoiceStore
	resolver Resolver
	enforcer *invariant.Enforcer
	writer   *engine.DualWriter
	tx       TxRunner
	log      *log.Logger
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithTx sets the transaction runner (required for postgres-backed setups).
func WithTx(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New constructs the billing service.
func New(store InvoiceStore, resolver Resolver, enforcer *invariant.Enforcer, writer *engine.DualWriter, opts ...Option) *Service {
	s := &Service{store: store, resolver: resolver, enforcer: enforcer, writer: writer, tx: passthroughTx{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvoiceInput carries the fields for creating an invoice. The buyer may be
// given canonically (BuyerPartyID) or as a legacy reference; legacy input
// stays accepted after the invoices table cuts over.
type InvoiceInput struct {
	GroupID      id.GroupID
	BuyerPartyID id.PartyID
	Buyer        partymodels.LegacyRef
	AmountCents  int64
	Currency     string
}

// CreateInvoice bills a group purchase to a buyer Party.
//
// The buyer-of-group assertion and the insert share one transaction, with
// the assignment row read FOR SHARE, so a buyer removed mid-submit fails the
// whole write rather than producing an invoice against a removed buyer.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (*models.Invoice, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "tenant scope is required")
	}

	buyerID := input.BuyerPartyID
	if buyerID.IsNil() {
		resolved, err := s.resolver.Resolve(ctx, input.Buyer)
		if err != nil {
			return nil, err
		}
		if resolved.IsNil() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "buyer reference does not resolve to a party")
		}
		buyerID = resolved
	} else if err := s.resolver.VerifyParty(ctx, buyerID); err != nil {
		// A canonical id skips resolution, so the tenant check must
		// happen here; another tenant's party is not billable.
		return nil, err
	}

	plan, err := s.writer.PlanWrite(ctx, InvoiceTable, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "plan invoice write")
	}

	now := requestcontext.Now(ctx)
	invoice := &models.Invoice{
		ID:           id.InvoiceID(uuid.New()),
		TenantID:     tenantID,
		GroupID:      input.GroupID,
		BuyerPartyID: buyerID,
		AmountCents:  input.AmountCents,
		Currency:     input.Currency,
		Status:       models.StatusIssued,
		IssuedAt:     now,
		CreatedAt:    now,
	}
	if plan.WriteLegacy {
		invoice.BuyerPersonID = plan.Legacy.PersonID
		invoice.BuyerOrganizationID = plan.Legacy.OrganizationID
	}
	if err := invoice.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.enforcer.AssertBuyerOfGroup(txCtx, input.GroupID, buyerID); err != nil {
			return err
		}
		if err := s.store.Create(txCtx, invoice); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create invoice")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if plan.Stage == migrationmodels.StageDualWrite {
		s.writer.VerifyAfterCommit(ctx, InvoiceTable, buyerID, plan.Legacy.ToRef())
	}
	return invoice, nil
}

// GetInvoice returns an invoice within the caller's tenant.
func (s *Service) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "tenant scope is required")
	}
	invoice, err := s.store.Find(ctx, invoiceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "invoice not found")
	}
	if invoice.TenantID != tenantID {
		return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}
