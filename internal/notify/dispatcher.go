package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
	"legacy-scheduler/internal/telemetry"
)

// OutboxStore is the slice of the store the dispatcher needs.
type OutboxStore interface {
	PendingInvitations(ctx context.Context, limit int) ([]models.Invitation, error)
	MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkInvitationFailed(ctx context.Context, id uuid.UUID, msg string, terminal bool) error
}

// Dispatcher drains the invitation outbox. Invitations are written in the same
// transaction as their grant; dispatch here is fire-and-forget with bounded
// retries, and a send failure never touches the grant.
type Dispatcher struct {
	store       OutboxStore
	notifier    Notifier
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         zerolog.Logger
}

func NewDispatcher(store OutboxStore, notifier Notifier, interval time.Duration, batchSize, maxAttempts int, log zerolog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Dispatcher{
		store:       store,
		notifier:    notifier,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Run polls the outbox until context cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		d.drainOnce(ctx)
	}
}

func (d *Dispatcher) drainOnce(ctx context.Context) {
	invitations, err := d.store.PendingInvitations(ctx, d.batchSize)
	if err != nil {
		d.log.Error().Err(err).Msg("read outbox")
		return
	}
	for _, inv := range invitations {
		if err := d.notifier.SendInvitation(ctx, inv); err != nil {
			terminal := inv.Attempts+1 >= d.maxAttempts
			if merr := d.store.MarkInvitationFailed(ctx, inv.ID, err.Error(), terminal); merr != nil {
				d.log.Error().Err(merr).Str("invitation_id", inv.ID.String()).Msg("mark invitation failed")
			}
			telemetry.InvitationsFailed.Inc()
			continue
		}
		if err := d.store.MarkInvitationSent(ctx, inv.ID, time.Now().UTC()); err != nil {
			d.log.Error().Err(err).Str("invitation_id", inv.ID.String()).Msg("mark invitation sent")
			continue
		}
		telemetry.InvitationsSent.Inc()
	}
}
