package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
	"legacy-scheduler/internal/telemetry"
)

// Confirmations runs the death-confirmation workflow: a trustee attests that
// an owner has died, and a confirmed attestation cascades into the scheduler.
type Confirmations struct {
	store ConfirmationStore
	users Directory
	sched *Scheduler
	log   zerolog.Logger
}

func NewConfirmations(store ConfirmationStore, users Directory, sched *Scheduler, log zerolog.Logger) *Confirmations {
	return &Confirmations{store: store, users: users, sched: sched, log: log}
}

// Create opens a PENDING confirmation pairing an owner with the trustee who
// may attest. Several trustees may hold open confirmations for the same owner
// at once; the workflow does not deduplicate.
func (c *Confirmations) Create(ctx context.Context, ownerID, trusteeID uuid.UUID) (models.DeathConfirmation, error) {
	for _, pair := range []struct {
		label string
		id    uuid.UUID
	}{{"owner", ownerID}, {"trustee", trusteeID}} {
		ok, err := c.users.UserExists(ctx, pair.id)
		if err != nil {
			return models.DeathConfirmation{}, Persistence("lookup "+pair.label, err)
		}
		if !ok {
			return models.DeathConfirmation{}, notFound("%s %s", pair.label, pair.id)
		}
	}

	confirmation := models.DeathConfirmation{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		TrusteeID: trusteeID,
		Status:    models.ConfirmationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.CreateConfirmation(ctx, confirmation); err != nil {
		return models.DeathConfirmation{}, Persistence("create confirmation", err)
	}
	return confirmation, nil
}

// Confirm transitions PENDING -> CONFIRMED, stamps ConfirmedAt once, and then
// resolves the owner's death-anchored jobs. Only the designated trustee may
// confirm.
func (c *Confirmations) Confirm(ctx context.Context, confirmationID, trusteeID uuid.UUID) error {
	confirmation, err := c.transition(ctx, confirmationID, trusteeID, models.ConfirmationConfirmed)
	if err != nil {
		return err
	}
	telemetry.DeathConfirmations.Inc()
	c.log.Info().
		Str("owner_id", confirmation.OwnerID.String()).
		Str("confirmation_id", confirmationID.String()).
		Msg("death confirmed")
	return c.sched.OnDeathConfirmed(ctx, confirmation.OwnerID, *confirmation.ConfirmedAt)
}

// Reject transitions PENDING -> REJECTED with the same preconditions as
// Confirm but no cascade.
func (c *Confirmations) Reject(ctx context.Context, confirmationID, trusteeID uuid.UUID) error {
	_, err := c.transition(ctx, confirmationID, trusteeID, models.ConfirmationRejected)
	return err
}

func (c *Confirmations) transition(ctx context.Context, confirmationID, trusteeID uuid.UUID, to models.ConfirmationStatus) (models.DeathConfirmation, error) {
	confirmation, found, err := c.store.GetConfirmation(ctx, confirmationID)
	if err != nil {
		return models.DeathConfirmation{}, Persistence("get confirmation", err)
	}
	if !found {
		return models.DeathConfirmation{}, notFound("confirmation %s", confirmationID)
	}
	if confirmation.TrusteeID != trusteeID {
		return models.DeathConfirmation{}, forbidden("only the designated trustee may act on confirmation %s", confirmationID)
	}
	if confirmation.Status != models.ConfirmationPending {
		return models.DeathConfirmation{}, invalidState("confirmation %s is %s", confirmationID, confirmation.Status)
	}

	var confirmedAt *time.Time
	if to == models.ConfirmationConfirmed {
		now := time.Now().UTC()
		confirmedAt = &now
	}
	if err := c.store.SetConfirmationStatus(ctx, confirmationID, to, confirmedAt); err != nil {
		return models.DeathConfirmation{}, Persistence("update confirmation", err)
	}
	confirmation.Status = to
	confirmation.ConfirmedAt = confirmedAt
	return confirmation, nil
}

// Current returns the most recently confirmed record for an owner, if any.
// Read-only; used by status displays.
func (c *Confirmations) Current(ctx context.Context, ownerID uuid.UUID) (models.DeathConfirmation, bool, error) {
	confirmation, found, err := c.store.LatestConfirmation(ctx, ownerID)
	if err != nil {
		return models.DeathConfirmation{}, false, Persistence("latest confirmation", err)
	}
	return confirmation, found, nil
}
