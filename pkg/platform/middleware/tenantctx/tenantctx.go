// Package tenantctx authenticates requests and scopes them to a tenant.
// Every store query downstream filters by the tenant id this middleware
// installs; a request without a valid tenant claim never reaches a handler.
package tenantctx

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "studbook/pkg/domain"
	"studbook/pkg/requestcontext"
)

const tenantClaim = "tenant_id"

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireTenant validates the bearer token and installs the tenant scope and
// actor into the request context.
func RequireTenant(signingKey []byte, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil {
				if logger != nil {
					logger.Printf("unauthorized: invalid token: %v", err)
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			tenantID, err := tenantFromClaims(claims)
			if err != nil {
				if logger != nil {
					logger.Printf("unauthorized: %v", err)
				}
				writeJSONError(w, http.StatusForbidden, "forbidden", "token carries no tenant scope")
				return
			}

			ctx := requestcontext.WithTenantID(r.Context(), tenantID)
			if subject, err := claims.GetSubject(); err == nil && subject != "" {
				ctx = requestcontext.WithActor(ctx, subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tenantFromClaims(claims jwt.MapClaims) (id.TenantID, error) {
	raw, ok := claims[tenantClaim].(string)
	if !ok || raw == "" {
		return id.TenantID{}, fmt.Errorf("token has no %s claim", tenantClaim)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return id.TenantID{}, fmt.Errorf("malformed %s claim: %w", tenantClaim, err)
	}
	return id.TenantID(parsed), nil
}
