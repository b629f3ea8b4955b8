package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"legacy-scheduler/internal/models"
)

const triggerColumns = `id, owner_id, trigger_type, config, active, created_at`

func scanTrigger(row pgx.Row) (models.Trigger, error) {
	var (
		t           models.Trigger
		triggerType string
		config      []byte
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &triggerType, &config, &t.Active, &t.CreatedAt); err != nil {
		return models.Trigger{}, err
	}
	t.Type = models.TriggerType(triggerType)
	t.Config = config
	return t, nil
}

// CreateTrigger inserts a delivery trigger.
func (s *Store) CreateTrigger(ctx context.Context, t models.Trigger) error {
	var config any
	if len(t.Config) > 0 {
		config = []byte(t.Config)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_triggers (id, owner_id, trigger_type, config, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.OwnerID, string(t.Type), config, t.Active, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// GetTrigger fetches a trigger by id.
func (s *Store) GetTrigger(ctx context.Context, id uuid.UUID) (models.Trigger, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+triggerColumns+` FROM delivery_triggers WHERE id = $1`, id)
	t, err := scanTrigger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Trigger{}, false, nil
	}
	if err != nil {
		return models.Trigger{}, false, fmt.Errorf("scan trigger: %w", err)
	}
	return t, true, nil
}

// SetTriggerActive flips the active flag.
func (s *Store) SetTriggerActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE delivery_triggers SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	return nil
}

// TriggersForOwner lists the owner's triggers.
func (s *Store) TriggersForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Trigger, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+triggerColumns+` FROM delivery_triggers WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var triggers []models.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// DeleteTrigger removes an owner's trigger. Returns false when no row matched
// the owner/id pair.
func (s *Store) DeleteTrigger(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM delivery_triggers WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete trigger: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
