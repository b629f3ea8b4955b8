package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsCreated        = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_jobs_created_total", Help: "Scheduled delivery jobs created"})
	JobsCompleted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_jobs_completed_total", Help: "Jobs that reached COMPLETED"})
	JobsFailed         = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_jobs_failed_total", Help: "Jobs that reached FAILED"})
	DeathConfirmations = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_death_confirmations_total", Help: "Death confirmations accepted"})
	GrantsClaimed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_grants_claimed_total", Help: "Access grants claimed by trustees"})
	GrantsRevoked      = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_grants_revoked_total", Help: "Access grants revoked"})
	ClaimRateLimited   = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_claim_rate_limited_total", Help: "Claim/validate requests rejected by the rate limiter"})
	InvitationsSent    = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_invitations_sent_total", Help: "Access-code invitations dispatched"})
	InvitationsFailed  = prometheus.NewCounter(prometheus.CounterOpts{Name: "legacy_invitations_failed_total", Help: "Access-code invitations that failed to send"})
	DueIndexDepth      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "legacy_due_index_depth", Help: "Resolved pending jobs waiting in the due index"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsCreated,
			JobsCompleted,
			JobsFailed,
			DeathConfirmations,
			GrantsClaimed,
			GrantsRevoked,
			ClaimRateLimited,
			InvitationsSent,
			InvitationsFailed,
			DueIndexDepth,
		)
	})
	return promhttp.Handler()
}
