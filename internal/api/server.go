package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/assets"
	"legacy-scheduler/internal/config"
	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/models"
	"legacy-scheduler/internal/ratelimit"
	"legacy-scheduler/internal/telemetry"
)

// MessageStore is the thin persistence slice behind message staging.
type MessageStore interface {
	CreateMessage(ctx context.Context, m models.Message) error
}

// Server wires HTTP handlers for the delivery engine.
type Server struct {
	cfg           config.Config
	triggers      *engine.Triggers
	confirmations *engine.Confirmations
	scheduler     *engine.Scheduler
	grants        *engine.Grants
	gate          *engine.Gate
	assets        *assets.Service // nil disables asset upload
	messages      MessageStore
	users         engine.Directory
	limiter       *ratelimit.TokenBucket // nil disables claim throttling
	log           zerolog.Logger
}

// New constructs the API server.
func New(
	cfg config.Config,
	triggers *engine.Triggers,
	confirmations *engine.Confirmations,
	scheduler *engine.Scheduler,
	grants *engine.Grants,
	gate *engine.Gate,
	assetSvc *assets.Service,
	messages MessageStore,
	users engine.Directory,
	limiter *ratelimit.TokenBucket,
	log zerolog.Logger,
) *Server {
	return &Server{
		cfg:           cfg,
		triggers:      triggers,
		confirmations: confirmations,
		scheduler:     scheduler,
		grants:        grants,
		gate:          gate,
		assets:        assetSvc,
		messages:      messages,
		users:         users,
		limiter:       limiter,
		log:           log,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/triggers", s.handleCreateTrigger)
	r.Post("/triggers/{id}/activate", s.handleActivateTrigger)
	r.Post("/triggers/{id}/deactivate", s.handleDeactivateTrigger)
	r.Delete("/triggers/{id}", s.handleDeleteTrigger)
	r.Get("/owners/{ownerID}/triggers", s.handleListTriggers)

	r.Post("/confirmations", s.handleCreateConfirmation)
	r.Post("/confirmations/{id}/confirm", s.handleConfirmDeath)
	r.Post("/confirmations/{id}/reject", s.handleRejectConfirmation)
	r.Get("/owners/{ownerID}/confirmation", s.handleCurrentConfirmation)

	r.Post("/jobs", s.handleCreateJob)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Post("/jobs/{id}/fire", s.handleFireJob)

	r.Post("/access/claim", s.handleClaim)
	r.Get("/access/validate", s.handleValidate)
	r.Post("/grants/{id}/revoke", s.handleRevoke)

	r.Get("/trustees/{trusteeID}/content", s.handleTrusteeContent)

	r.Post("/messages", s.handleCreateMessage)
	r.Post("/assets", s.handleUploadAsset)

	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// allowClaimAttempt throttles code-guessing per client address.
func (s *Server) allowClaimAttempt(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	allowed, err := s.limiter.Allow(r.Context(), "claim:"+host)
	if err != nil {
		// Redis trouble must not lock trustees out.
		s.log.Warn().Err(err).Msg("claim limiter unavailable")
		return true
	}
	if !allowed {
		telemetry.ClaimRateLimited.Inc()
	}
	return allowed
}

func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
