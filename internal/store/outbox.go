package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"legacy-scheduler/internal/models"
)

// PendingInvitations returns the oldest undispatched invitation rows.
func (s *Store) PendingInvitations(ctx context.Context, limit int) ([]models.Invitation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, email, access_code, status, attempts, last_error, created_at, sent_at
		FROM invitation_outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(models.InvitationPending), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		var (
			inv     models.Invitation
			status  string
			lastErr pgtype.Text
			sentAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&inv.ID, &inv.JobID, &inv.Email, &inv.AccessCode, &status,
			&inv.Attempts, &lastErr, &inv.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		inv.Status = models.InvitationStatus(status)
		inv.LastError = textPtr(lastErr)
		inv.SentAt = timePtr(sentAt)
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// MarkInvitationSent stamps a successful dispatch.
func (s *Store) MarkInvitationSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE invitation_outbox SET status = $2, sent_at = $3 WHERE id = $1
	`, id, string(models.InvitationSent), at)
	if err != nil {
		return fmt.Errorf("mark invitation sent: %w", err)
	}
	return nil
}

// MarkInvitationFailed records a dispatch failure. The row stays PENDING for
// retry until terminal, at which point it parks as FAILED.
func (s *Store) MarkInvitationFailed(ctx context.Context, id uuid.UUID, msg string, terminal bool) error {
	status := models.InvitationPending
	if terminal {
		status = models.InvitationFailed
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE invitation_outbox
		SET status = $2, attempts = attempts + 1, last_error = $3
		WHERE id = $1
	`, id, string(status), msg)
	if err != nil {
		return fmt.Errorf("mark invitation failed: %w", err)
	}
	return nil
}
