package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"studbook/internal/audit"
	billingmodels "studbook/internal/billing/models"
	billingservice "studbook/internal/billing/service"
	billingstore "studbook/internal/billing/store"
	groupmodels "studbook/internal/group/models"
	groupstore "studbook/internal/group/store"
	"studbook/internal/invariant"
	"studbook/internal/migration/adapter"
	"studbook/internal/migration/engine"
	migrationstore "studbook/internal/migration/store"
	partyservice "studbook/internal/party/service"
	partystore "studbook/internal/party/store"
	"studbook/internal/platform/config"
	id "studbook/pkg/domain"
	"studbook/pkg/requestcontext"
)

var signingKey = []byte("router-test-signing-key")

type RouterSuite struct {
	suite.Suite

	server   *httptest.Server
	tenantID id.TenantID

	parties *partyservice.Service
	groups  *groupstore.InMemory
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.tenantID = id.TenantID(uuid.New())

	auditRec := audit.NewRecorder(audit.NewInMemory(), nil)
	s.parties = partyservice.New(partystore.NewInMemory(), partyservice.WithAudit(auditRec))
	s.groups = groupstore.NewInMemory()

	stages := migrationstore.NewStageInMemory()
	eng := engine.New(stages, migrationstore.NewCheckpointInMemory(), s.parties)
	eng.Register(adapter.NewMemory("invoices", nil))
	writer := engine.NewDualWriter(stages, s.parties, auditRec, nil, nil)

	invoices := billingservice.New(billingstore.NewInMemory(), s.parties,
		invariant.New(s.groups), writer)

	ops := NewOpsHandler(nil, nil, eng, config.BackfillConfig{ChunkSize: 100, Workers: 1}, nil)
	api := NewAPIHandler(invoices, signingKey, nil)
	s.server = httptest.NewServer(NewRouter(ops, api))
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

// ==========================================================================
// Ops routes
// ==========================================================================

func (s *RouterSuite) TestHealthz() {
	resp, err := http.Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestRequestIDEchoed() {
	resp, err := http.Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
}

func (s *RouterSuite) TestBackfillUnknownTable() {
	resp, err := http.Post(s.server.URL+"/ops/migration/nope/backfill", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) TestCutoverWithoutToken() {
	resp, err := http.Post(s.server.URL+"/ops/migration/invoices/cutover", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

// ==========================================================================
// Tenant API routes
// ==========================================================================

func (s *RouterSuite) TestInvoiceRequiresToken() {
	resp, err := http.Post(s.server.URL+"/api/v1/invoices", "application/json", bytes.NewReader([]byte("{}")))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestCreateAndFetchInvoice() {
	ctx := requestcontext.WithTenantID(context.Background(), s.tenantID)
	person, err := s.parties.CreatePerson(ctx, partyservice.PersonInput{FirstName: "Maja", LastName: "Kask"})
	s.Require().NoError(err)

	groupID := id.GroupID(uuid.New())
	s.Require().NoError(s.groups.Assign(ctx, &groupmodels.BuyerAssignment{
		TenantID:   s.tenantID,
		GroupID:    groupID,
		PartyID:    person.PartyID,
		AssignedAt: time.Now(),
	}))

	body := map[string]any{
		"group_id":        groupID.String(),
		"buyer_person_id": person.ID.String(),
		"amount_cents":    12500,
		"currency":        "EUR",
	}
	resp := s.doJSON(http.MethodPost, "/api/v1/invoices", body)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created billingmodels.Invoice
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	s.Equal(person.PartyID, created.BuyerPartyID)

	get, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/invoices/"+created.ID.String(), nil)
	s.Require().NoError(err)
	get.Header.Set("Authorization", "Bearer "+s.token(s.tenantID))
	getResp, err := http.DefaultClient.Do(get)
	s.Require().NoError(err)
	defer getResp.Body.Close()
	s.Equal(http.StatusOK, getResp.StatusCode)
}

func (s *RouterSuite) TestCreateInvoiceNonBuyer() {
	ctx := requestcontext.WithTenantID(context.Background(), s.tenantID)
	person, err := s.parties.CreatePerson(ctx, partyservice.PersonInput{FirstName: "Jaan", LastName: "Tamm"})
	s.Require().NoError(err)

	body := map[string]any{
		"group_id":        uuid.NewString(),
		"buyer_person_id": person.ID.String(),
		"amount_cents":    500,
		"currency":        "EUR",
	}
	resp := s.doJSON(http.MethodPost, "/api/v1/invoices", body)
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)

	var payload map[string]string
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&payload))
	s.Equal("NOT_A_GROUP_BUYER", payload["reason"])
}

func (s *RouterSuite) TestCreateInvoiceBadGroupID() {
	resp := s.doJSON(http.MethodPost, "/api/v1/invoices", map[string]any{"group_id": "not-a-uuid"})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterSuite) TestGetInvoiceOtherTenant() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/invoices/"+uuid.NewString(), nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token(id.TenantID(uuid.New())))
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RouterSuite) doJSON(method, path string, body any) *http.Response {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(raw))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(s.tenantID))
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) token(tenantID id.TenantID) string {
	claims := jwt.MapClaims{
		"sub":       "tester",
		"tenant_id": tenantID.String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	s.Require().NoError(err)
	return signed
}
