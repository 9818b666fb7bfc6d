// Package httptransport exposes the operational HTTP surface: liveness,
// readiness, metrics, and the operator endpoints driving the migration
// engine. Business routes live with the marketplace API, not here.
package httptransport

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studbook/internal/migration/engine"
	"studbook/internal/platform/config"
	redisplatform "studbook/internal/platform/redis"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/platform/middleware/requestid"
	"studbook/pkg/platform/middleware/requesttime"
)

// operatorTokenHeader carries the cutover token; it is checked against the
// configured bcrypt hash by the engine, never logged.
const operatorTokenHeader = "X-Operator-Token"

// OpsHandler serves the operational endpoints.
type OpsHandler struct {
	db       *sql.DB
	redis    *redisplatform.Client
	engine   *engine.Engine
	backfill config.BackfillConfig
	log      *log.Logger
}

// NewOpsHandler constructs the operational handler. redis may be nil when
// not configured.
func NewOpsHandler(db *sql.DB, redis *redisplatform.Client, eng *engine.Engine, backfill config.BackfillConfig, logger *log.Logger) *OpsHandler {
	return &OpsHandler{db: db, redis: redis, engine: eng, backfill: backfill, log: logger}
}

// NewRouter wires the operational routes and, when api is non-nil, the
// tenant-facing routes under /api/v1.
func NewRouter(h *OpsHandler, api *APIHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/ops/migration/{table}", func(r chi.Router) {
		r.Post("/backfill", h.handleBackfill)
		r.Post("/validate", h.handleValidate)
		r.Post("/dual-write", h.handleDualWrite)
		r.Post("/cutover", h.handleCutover)
	})

	if api != nil {
		r.Route("/api/v1", api.routes)
	}
	return r
}

func (h *OpsHandler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OpsHandler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "postgres unavailable"})
		return
	}
	if h.redis != nil {
		if err := h.redis.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *OpsHandler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	report, err := h.engine.RunBackfill(r.Context(), table, h.backfill.ChunkSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *OpsHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	report, err := h.engine.ValidateConsistency(r.Context(), table)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *OpsHandler) handleDualWrite(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := h.engine.AdvanceToDualWrite(r.Context(), table); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"table": table, "stage": "DUAL_WRITE"})
}

func (h *OpsHandler) handleCutover(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	token := r.Header.Get(operatorTokenHeader)
	if err := h.engine.Cutover(r.Context(), table, token); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"table": table, "stage": "PARTY_ONLY"})
}

func (h *OpsHandler) writeError(w http.ResponseWriter, err error) {
	writeDomainError(w, h.log, err)
}

func writeDomainError(w http.ResponseWriter, logger *log.Logger, err error) {
	code := dErrors.CodeInternal
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	if code == dErrors.CodeInternal && logger != nil {
		logger.Printf("http error: %v", err)
	}
	body := map[string]string{"error": string(code)}
	if domainErr != nil && domainErr.Reason != "" {
		body["reason"] = domainErr.Reason
	}
	writeJSON(w, httpStatus(code), body)
}

func httpStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeAmbiguousReference:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation, dErrors.CodeCutoverBlocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
