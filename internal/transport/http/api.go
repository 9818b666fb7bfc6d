package httptransport

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	billingservice "studbook/internal/billing/service"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/platform/middleware/tenantctx"
)

// APIHandler serves the tenant-facing invoice routes. Every route runs
// behind the tenant middleware, so handlers can assume a scoped context.
type APIHandler struct {
	invoices   *billingservice.Service
	signingKey []byte
	log        *log.Logger
}

func NewAPIHandler(invoices *billingservice.Service, signingKey []byte, logger *log.Logger) *APIHandler {
	return &APIHandler{invoices: invoices, signingKey: signingKey, log: logger}
}

func (h *APIHandler) routes(r chi.Router) {
	r.Use(tenantctx.RequireTenant(h.signingKey, h.log))
	r.Post("/invoices", h.handleCreateInvoice)
	r.Get("/invoices/{invoiceID}", h.handleGetInvoice)
}

type createInvoiceRequest struct {
	GroupID             string `json:"group_id"`
	BuyerPartyID        string `json:"buyer_party_id,omitempty"`
	BuyerPersonID       string `json:"buyer_person_id,omitempty"`
	BuyerOrganizationID string `json:"buyer_organization_id,omitempty"`
	AmountCents         int64  `json:"amount_cents"`
	Currency            string `json:"currency"`
}

func (h *APIHandler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	input := billingservice.InvoiceInput{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	}
	var err error
	if input.GroupID, err = id.ParseGroupID(req.GroupID); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid group_id"))
		return
	}
	if input.BuyerPartyID, input.Buyer, err = parseBuyer(req); err != nil {
		h.writeError(w, err)
		return
	}

	invoice, err := h.invoices.CreateInvoice(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

// parseBuyer accepts either a canonical party id or legacy person and
// organization ids; the service resolves legacy input.
func parseBuyer(req createInvoiceRequest) (id.PartyID, partymodels.LegacyRef, error) {
	if req.BuyerPartyID != "" {
		partyID, err := id.ParsePartyID(req.BuyerPartyID)
		if err != nil {
			return id.PartyID{}, partymodels.LegacyRef{}, dErrors.New(dErrors.CodeBadRequest, "invalid buyer_party_id")
		}
		return partyID, partymodels.LegacyRef{}, nil
	}

	var ref partymodels.LegacyRef
	var err error
	if req.BuyerPersonID != "" {
		if ref.PersonID, err = id.ParsePersonID(req.BuyerPersonID); err != nil {
			return id.PartyID{}, partymodels.LegacyRef{}, dErrors.New(dErrors.CodeBadRequest, "invalid buyer_person_id")
		}
	}
	if req.BuyerOrganizationID != "" {
		if ref.OrganizationID, err = id.ParseOrganizationID(req.BuyerOrganizationID); err != nil {
			return id.PartyID{}, partymodels.LegacyRef{}, dErrors.New(dErrors.CodeBadRequest, "invalid buyer_organization_id")
		}
	}
	return id.PartyID{}, ref, nil
}

func (h *APIHandler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid invoice id"))
		return
	}

	invoice, err := h.invoices.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	writeDomainError(w, h.log, err)
}
