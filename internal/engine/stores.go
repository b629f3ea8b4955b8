package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"legacy-scheduler/internal/models"
)

// Directory resolves owner/trustee IDs against the identity collaborator.
type Directory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ConfirmationStore persists death confirmations.
type ConfirmationStore interface {
	CreateConfirmation(ctx context.Context, c models.DeathConfirmation) error
	GetConfirmation(ctx context.Context, id uuid.UUID) (models.DeathConfirmation, bool, error)
	SetConfirmationStatus(ctx context.Context, id uuid.UUID, status models.ConfirmationStatus, confirmedAt *time.Time) error
	LatestConfirmation(ctx context.Context, ownerID uuid.UUID) (models.DeathConfirmation, bool, error)
}

// JobStore persists scheduled jobs and their recipient grants.
type JobStore interface {
	// CreateJobWithRecipients inserts the job, its grants, and the invitation
	// outbox rows as one atomic unit. It regenerates access codes on unique
	// collisions rather than failing.
	CreateJobWithRecipients(ctx context.Context, job models.ScheduledJob, recipients []models.JobRecipient, invitations []models.Invitation) error
	GetJob(ctx context.Context, id uuid.UUID) (models.ScheduledJob, bool, error)
	// PendingJobsBySchedule returns PENDING jobs for the owner whose schedule
	// type is in types. Filtering on status keeps firing idempotent.
	PendingJobsBySchedule(ctx context.Context, ownerID uuid.UUID, types []models.ScheduleType) ([]models.ScheduledJob, error)
	// ResolveJob stamps the computed delivery time on the job and every one of
	// its recipients in a single transaction. A non-nil executedAt also moves
	// the job to COMPLETED.
	ResolveJob(ctx context.Context, jobID uuid.UUID, at time.Time, executedAt *time.Time) error
	// CompleteJob moves a PENDING job to COMPLETED. Returns false without
	// error when the job was not PENDING, so repeat firing is a no-op.
	CompleteJob(ctx context.Context, jobID uuid.UUID, executedAt time.Time) (bool, error)
	FailJob(ctx context.Context, jobID uuid.UUID, msg string) error
	// DuePendingJobs returns PENDING jobs whose resolved delivery time is not
	// after now. Used by the firing loop as the durable source of truth.
	DuePendingJobs(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error)
}

// GrantStore persists access grants.
type GrantStore interface {
	// ClaimGrant binds the trustee to the grant identified by accessCode and
	// moves it PENDING -> REGISTERED under a row lock, so concurrent claims
	// with the same code serialize and exactly one wins. Returns the engine
	// error taxonomy directly: ErrInvalidArgument for an unknown code,
	// ErrInvalidState when the grant is no longer PENDING.
	ClaimGrant(ctx context.Context, accessCode string, trusteeID uuid.UUID, at time.Time) (models.JobRecipient, error)
	GrantByCode(ctx context.Context, accessCode string) (models.JobRecipient, bool, error)
	GetGrant(ctx context.Context, id uuid.UUID) (models.JobRecipient, bool, error)
	RevokeGrant(ctx context.Context, id uuid.UUID) error
	RegisteredGrantsForTrustee(ctx context.Context, trusteeID uuid.UUID) ([]models.JobRecipient, error)
}

// TriggerStore persists delivery triggers.
type TriggerStore interface {
	CreateTrigger(ctx context.Context, t models.Trigger) error
	GetTrigger(ctx context.Context, id uuid.UUID) (models.Trigger, bool, error)
	SetTriggerActive(ctx context.Context, id uuid.UUID, active bool) error
	TriggersForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Trigger, error)
	DeleteTrigger(ctx context.Context, ownerID, id uuid.UUID) (bool, error)
}

// ContentStore fetches the opaque content a completed job references.
type ContentStore interface {
	MessageByID(ctx context.Context, id uuid.UUID) (models.Message, bool, error)
	AssetByID(ctx context.Context, id uuid.UUID) (models.DigitalAsset, bool, error)
}

// DueIndex is an optional fast index of resolved delivery times, polled by the
// firing loop. Postgres remains authoritative; index errors are advisory.
type DueIndex interface {
	Add(ctx context.Context, jobID uuid.UUID, at time.Time) error
	Remove(ctx context.Context, jobID uuid.UUID) error
}
