package tenantctx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "studbook/pkg/domain"
	"studbook/pkg/requestcontext"
)

var signingKey = []byte("test-signing-key")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signingKey)
	require.NoError(t, err)
	return signed
}

func TestRequireTenant(t *testing.T) {
	tenantID := uuid.New()

	var seenTenant id.TenantID
	var seenActor string
	handler := RequireTenant(signingKey, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTenant = requestcontext.TenantID(r.Context())
		seenActor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token installs tenant scope and actor", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"tenant_id": tenantID.String(),
			"sub":       "user-42",
			"exp":       time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, id.TenantID(tenantID), seenTenant)
		assert.Equal(t, "user-42", seenActor)
	})

	t.Run("missing bearer token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token is unauthorized", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"tenant_id": tenantID.String(),
			"exp":       time.Now().Add(-time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without tenant claim is forbidden", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("token signed with another key is unauthorized", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"tenant_id": tenantID.String(),
		})
		signed, err := token.SignedString([]byte("other-key"))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
