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

const accessCodeRetries = 5

// CreateJobWithRecipients inserts a job, its recipient grants, and the
// matching invitation outbox rows in one transaction. recipients and
// invitations are aligned by index; if a freshly generated access code
// collides with an existing one, both rows pick up a regenerated code.
func (s *Store) CreateJobWithRecipients(ctx context.Context, job models.ScheduledJob, recipients []models.JobRecipient, invitations []models.Invitation) error {
	if len(invitations) != len(recipients) {
		return fmt.Errorf("recipients/invitations mismatch: %d vs %d", len(recipients), len(invitations))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	_, err = tx.Exec(ctx, `
		INSERT INTO scheduled_jobs (id, owner_id, entity_id, job_type, schedule_type, time_offset, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, job.ID, job.OwnerID, job.EntityID, string(job.JobType), string(job.ScheduleType),
		job.TimeOffset, nullableDelivery(job.ScheduledFor), string(job.Status), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	for i := range recipients {
		code, err := insertRecipient(ctx, tx, recipients[i])
		if err != nil {
			return err
		}
		inv := invitations[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO invitation_outbox (id, job_id, email, access_code, status, attempts, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)
		`, inv.ID, inv.JobID, inv.Email, code, string(models.InvitationPending), inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertRecipient inserts one grant row, regenerating the access code on a
// unique collision. The insert runs inside a savepoint so a collision does
// not poison the surrounding transaction. Returns the code actually stored.
func insertRecipient(ctx context.Context, tx pgx.Tx, r models.JobRecipient) (string, error) {
	code := r.AccessCode
	for attempt := 0; ; attempt++ {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return "", fmt.Errorf("begin savepoint: %w", err)
		}
		_, err = sp.Exec(ctx, `
			INSERT INTO job_recipients (id, job_id, email, trustee_id, access_code, status, scheduled_delivery_time, access_created_at)
			VALUES ($1, $2, $3, NULL, $4, $5, $6, $7)
		`, r.ID, r.JobID, r.Email, code, string(r.Status), nullableDelivery(r.ScheduledDeliveryTime), r.AccessCreatedAt)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return "", fmt.Errorf("commit savepoint: %w", err)
			}
			return code, nil
		}
		_ = sp.Rollback(ctx)
		if !isUniqueViolation(err) || attempt >= accessCodeRetries {
			return "", fmt.Errorf("insert recipient: %w", err)
		}
		code = uuid.NewString()
	}
}

const jobColumns = `id, owner_id, entity_id, job_type, schedule_type, time_offset, scheduled_for, status, executed_at, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (models.ScheduledJob, error) {
	var (
		job          models.ScheduledJob
		jobType      string
		scheduleType string
		status       string
		offset       pgtype.Int4
		scheduledFor pgtype.Timestamptz
		executedAt   pgtype.Timestamptz
		errMsg       pgtype.Text
	)
	err := row.Scan(&job.ID, &job.OwnerID, &job.EntityID, &jobType, &scheduleType,
		&offset, &scheduledFor, &status, &executedAt, &errMsg, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return models.ScheduledJob{}, err
	}
	job.JobType = models.JobType(jobType)
	job.ScheduleType = models.ScheduleType(scheduleType)
	job.Status = models.JobStatus(status)
	if offset.Valid {
		v := int(offset.Int32)
		job.TimeOffset = &v
	}
	job.ScheduledFor = deliveryTime(scheduledFor)
	job.ExecutedAt = timePtr(executedAt)
	job.ErrorMessage = textPtr(errMsg)
	return job, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (models.ScheduledJob, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ScheduledJob{}, false, nil
	}
	if err != nil {
		return models.ScheduledJob{}, false, fmt.Errorf("scan job: %w", err)
	}
	return job, true, nil
}

// PendingJobsBySchedule returns the owner's PENDING jobs with a schedule type
// in types. The status filter keeps repeated firing events idempotent.
func (s *Store) PendingJobsBySchedule(ctx context.Context, ownerID uuid.UUID, types []models.ScheduleType) ([]models.ScheduledJob, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM scheduled_jobs
		WHERE owner_id = $1 AND status = $2 AND schedule_type = ANY($3)
		ORDER BY created_at
	`, ownerID, string(models.JobPending), names)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DuePendingJobs returns PENDING jobs whose resolved delivery time has passed.
func (s *Store) DuePendingJobs(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM scheduled_jobs
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3
	`, string(models.JobPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ResolveJob stamps the computed delivery time on a PENDING job and all of its
// recipients atomically. A non-nil executedAt also completes the job.
func (s *Store) ResolveJob(ctx context.Context, jobID uuid.UUID, at time.Time, executedAt *time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status := models.JobPending
	if executedAt != nil {
		status = models.JobCompleted
	}
	tag, err := tx.Exec(ctx, `
		UPDATE scheduled_jobs
		SET scheduled_for = $2, status = $3, executed_at = COALESCE($4, executed_at), updated_at = now()
		WHERE id = $1 AND status = $5
	`, jobID, at, string(status), executedAt, string(models.JobPending))
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already advanced by a concurrent or repeated firing; leave it alone.
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE job_recipients SET scheduled_delivery_time = $2 WHERE job_id = $1
	`, jobID, at)
	if err != nil {
		return fmt.Errorf("update recipients: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CompleteJob moves a PENDING job to COMPLETED and stamps executed_at. Returns
// false when the job was not PENDING.
func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID, executedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_jobs
		SET status = $2, executed_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, jobID, string(models.JobCompleted), executedAt, string(models.JobPending))
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailJob moves a PENDING job to FAILED and records the error.
func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, msg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scheduled_jobs
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, jobID, string(models.JobFailed), msg, string(models.JobPending))
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}
