package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"legacy-scheduler/internal/models"
)

const confirmationColumns = `id, owner_id, trustee_id, status, confirmed_at, created_at`

func scanConfirmation(row pgx.Row) (models.DeathConfirmation, error) {
	var (
		c           models.DeathConfirmation
		status      string
		confirmedAt pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.TrusteeID, &status, &confirmedAt, &c.CreatedAt); err != nil {
		return models.DeathConfirmation{}, err
	}
	c.Status = models.ConfirmationStatus(status)
	c.ConfirmedAt = timePtr(confirmedAt)
	return c, nil
}

// CreateConfirmation inserts a new PENDING confirmation.
func (s *Store) CreateConfirmation(ctx context.Context, c models.DeathConfirmation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO death_confirmations (id, owner_id, trustee_id, status, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5)
	`, c.ID, c.OwnerID, c.TrusteeID, string(c.Status), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

// GetConfirmation fetches a confirmation by id.
func (s *Store) GetConfirmation(ctx context.Context, id uuid.UUID) (models.DeathConfirmation, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+confirmationColumns+` FROM death_confirmations WHERE id = $1`, id)
	c, err := scanConfirmation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DeathConfirmation{}, false, nil
	}
	if err != nil {
		return models.DeathConfirmation{}, false, fmt.Errorf("scan confirmation: %w", err)
	}
	return c, true, nil
}

// SetConfirmationStatus transitions a confirmation. confirmed_at is only ever
// written here, on the transition that supplies it; it is never overwritten.
func (s *Store) SetConfirmationStatus(ctx context.Context, id uuid.UUID, status models.ConfirmationStatus, confirmedAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE death_confirmations
		SET status = $2, confirmed_at = COALESCE(confirmed_at, $3)
		WHERE id = $1
	`, id, string(status), confirmedAt)
	if err != nil {
		return fmt.Errorf("update confirmation: %w", err)
	}
	return nil
}

// LatestConfirmation returns the owner's most recently confirmed record.
func (s *Store) LatestConfirmation(ctx context.Context, ownerID uuid.UUID) (models.DeathConfirmation, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+confirmationColumns+` FROM death_confirmations
		WHERE owner_id = $1 AND status = $2
		ORDER BY confirmed_at DESC
		LIMIT 1
	`, ownerID, string(models.ConfirmationConfirmed))
	c, err := scanConfirmation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DeathConfirmation{}, false, nil
	}
	if err != nil {
		return models.DeathConfirmation{}, false, fmt.Errorf("scan confirmation: %w", err)
	}
	return c, true, nil
}
