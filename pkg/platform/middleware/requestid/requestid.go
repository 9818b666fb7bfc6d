// Package requestid assigns each HTTP request an id for log and audit
// correlation. An incoming X-Request-ID is trusted when present so ids
// survive proxy hops.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"studbook/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// Middleware installs a request id into the context and echoes it on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerName, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
