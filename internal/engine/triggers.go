package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
)

// Triggers manages an owner's configured delivery triggers. Config JSON is
// opaque here: its schema depends on the trigger type and is only required to
// parse at the point of use.
type Triggers struct {
	store TriggerStore
	users Directory
	sched *Scheduler
	log   zerolog.Logger
}

func NewTriggers(store TriggerStore, users Directory, sched *Scheduler, log zerolog.Logger) *Triggers {
	return &Triggers{store: store, users: users, sched: sched, log: log}
}

func knownTriggerType(t models.TriggerType) bool {
	switch t {
	case models.TriggerDate, models.TriggerInactivity, models.TriggerManual, models.TriggerDeathConfirmed:
		return true
	}
	return false
}

// Create stores a new trigger for the owner.
func (t *Triggers) Create(ctx context.Context, ownerID uuid.UUID, triggerType models.TriggerType, config json.RawMessage, active bool) (models.Trigger, error) {
	if !knownTriggerType(triggerType) {
		return models.Trigger{}, invalidArgument("unknown trigger type %q", triggerType)
	}
	if len(config) > 0 && !json.Valid(config) {
		return models.Trigger{}, invalidArgument("trigger config is not valid JSON")
	}
	ok, err := t.users.UserExists(ctx, ownerID)
	if err != nil {
		return models.Trigger{}, Persistence("lookup owner", err)
	}
	if !ok {
		return models.Trigger{}, notFound("owner %s", ownerID)
	}

	trigger := models.Trigger{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      triggerType,
		Config:    config,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.store.CreateTrigger(ctx, trigger); err != nil {
		return models.Trigger{}, Persistence("create trigger", err)
	}
	return trigger, nil
}

// Activate marks a trigger active and feeds the firing event into the
// scheduler with the supplied reference instant. Activating an already-active
// trigger is a no-op.
func (t *Triggers) Activate(ctx context.Context, triggerID uuid.UUID, referenceInstant time.Time) error {
	trigger, found, err := t.store.GetTrigger(ctx, triggerID)
	if err != nil {
		return Persistence("get trigger", err)
	}
	if !found {
		return notFound("trigger %s", triggerID)
	}
	if trigger.Active {
		return nil
	}
	if err := t.store.SetTriggerActive(ctx, triggerID, true); err != nil {
		return Persistence("activate trigger", err)
	}
	t.log.Info().
		Str("trigger_id", triggerID.String()).
		Str("owner_id", trigger.OwnerID.String()).
		Str("type", string(trigger.Type)).
		Msg("trigger activated")
	return t.sched.OnTriggerFired(ctx, trigger.OwnerID, trigger.Type, referenceInstant)
}

// Deactivate flips a trigger inactive. Owner-scoped: a trigger not owned by
// ownerID behaves as absent.
func (t *Triggers) Deactivate(ctx context.Context, ownerID, triggerID uuid.UUID) error {
	trigger, found, err := t.store.GetTrigger(ctx, triggerID)
	if err != nil {
		return Persistence("get trigger", err)
	}
	if !found || trigger.OwnerID != ownerID {
		return notFound("trigger %s", triggerID)
	}
	if !trigger.Active {
		return nil
	}
	return t.store.SetTriggerActive(ctx, triggerID, false)
}

// ListForOwner returns all of an owner's triggers.
func (t *Triggers) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Trigger, error) {
	triggers, err := t.store.TriggersForOwner(ctx, ownerID)
	if err != nil {
		return nil, Persistence("list triggers", err)
	}
	return triggers, nil
}

// Delete removes an owner's trigger.
func (t *Triggers) Delete(ctx context.Context, ownerID, triggerID uuid.UUID) error {
	deleted, err := t.store.DeleteTrigger(ctx, ownerID, triggerID)
	if err != nil {
		return Persistence("delete trigger", err)
	}
	if !deleted {
		return notFound("trigger %s", triggerID)
	}
	return nil
}
