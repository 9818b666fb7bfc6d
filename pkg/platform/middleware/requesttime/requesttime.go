// Package requesttime captures one timestamp per HTTP request so every
// store write and audit event within the request shares the same "now".
package requesttime

import (
	"net/http"
	"time"

	"studbook/pkg/requestcontext"
)

// Middleware stores the request arrival time in the context. Services read
// it back through requestcontext.Now.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
