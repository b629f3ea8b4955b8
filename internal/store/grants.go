package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/models"
)

const grantColumns = `id, job_id, email, trustee_id, access_code, status, scheduled_delivery_time, access_created_at, access_registered_at`

func scanGrant(row pgx.Row) (models.JobRecipient, error) {
	var (
		grant        models.JobRecipient
		trusteeID    pgtype.UUID
		status       string
		deliveryAt   pgtype.Timestamptz
		registeredAt pgtype.Timestamptz
	)
	err := row.Scan(&grant.ID, &grant.JobID, &grant.Email, &trusteeID, &grant.AccessCode,
		&status, &deliveryAt, &grant.AccessCreatedAt, &registeredAt)
	if err != nil {
		return models.JobRecipient{}, err
	}
	grant.TrusteeID = uuidPtr(trusteeID)
	grant.Status = models.GrantStatus(status)
	grant.ScheduledDeliveryTime = deliveryTime(deliveryAt)
	grant.AccessRegisteredAt = timePtr(registeredAt)
	return grant, nil
}

// ClaimGrant performs the one-shot claim under a row lock: concurrent claims
// against the same code serialize on FOR UPDATE, so exactly one sees PENDING.
// Returns the engine taxonomy directly since the status check lives inside the
// locked transaction.
func (s *Store) ClaimGrant(ctx context.Context, accessCode string, trusteeID uuid.UUID, at time.Time) (models.JobRecipient, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.JobRecipient{}, engine.Persistence("begin claim tx", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+grantColumns+` FROM job_recipients WHERE access_code = $1 FOR UPDATE`, accessCode)
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JobRecipient{}, fmt.Errorf("%w: unknown access code", engine.ErrInvalidArgument)
	}
	if err != nil {
		return models.JobRecipient{}, engine.Persistence("scan grant", err)
	}
	if grant.Status != models.GrantPending {
		return models.JobRecipient{}, fmt.Errorf("%w: access code already %s", engine.ErrInvalidState, grant.Status)
	}

	_, err = tx.Exec(ctx, `
		UPDATE job_recipients
		SET trustee_id = $2, status = $3, access_registered_at = $4
		WHERE id = $1
	`, grant.ID, trusteeID, string(models.GrantRegistered), at)
	if err != nil {
		return models.JobRecipient{}, engine.Persistence("update grant", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.JobRecipient{}, engine.Persistence("commit claim", err)
	}

	grant.TrusteeID = &trusteeID
	grant.Status = models.GrantRegistered
	grant.AccessRegisteredAt = &at
	return grant, nil
}

// GrantByCode is the read-only lookup behind code validation.
func (s *Store) GrantByCode(ctx context.Context, accessCode string) (models.JobRecipient, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM job_recipients WHERE access_code = $1`, accessCode)
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JobRecipient{}, false, nil
	}
	if err != nil {
		return models.JobRecipient{}, false, fmt.Errorf("scan grant: %w", err)
	}
	return grant, true, nil
}

// GetGrant fetches a grant by id.
func (s *Store) GetGrant(ctx context.Context, id uuid.UUID) (models.JobRecipient, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM job_recipients WHERE id = $1`, id)
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JobRecipient{}, false, nil
	}
	if err != nil {
		return models.JobRecipient{}, false, fmt.Errorf("scan grant: %w", err)
	}
	return grant, true, nil
}

// RevokeGrant sets a grant REVOKED unconditionally. Terminal.
func (s *Store) RevokeGrant(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_recipients SET status = $2 WHERE id = $1
	`, id, string(models.GrantRevoked))
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	return nil
}

// RegisteredGrantsForTrustee lists the trustee's claimed grants.
func (s *Store) RegisteredGrantsForTrustee(ctx context.Context, trusteeID uuid.UUID) ([]models.JobRecipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+grantColumns+` FROM job_recipients
		WHERE trustee_id = $1 AND status = $2
		ORDER BY access_created_at
	`, trusteeID, string(models.GrantRegistered))
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []models.JobRecipient
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}
