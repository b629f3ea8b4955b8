package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
	"legacy-scheduler/internal/telemetry"
)

// Scheduler owns the ScheduledJob lifecycle: creation, resolution of relative
// delivery times when a trigger fires, and completion. Jobs move
// PENDING -> COMPLETED or PENDING -> FAILED and never back.
type Scheduler struct {
	jobs  JobStore
	users Directory
	due   DueIndex // may be nil
	log   zerolog.Logger
}

func NewScheduler(jobs JobStore, users Directory, due DueIndex, log zerolog.Logger) *Scheduler {
	return &Scheduler{jobs: jobs, users: users, due: due, log: log}
}

// CreateJobParams collects inputs for a new scheduled delivery.
type CreateJobParams struct {
	EntityID        uuid.UUID
	JobType         models.JobType
	OwnerID         uuid.UUID
	ScheduleType    models.ScheduleType
	ExactTime       *time.Time
	TimeOffset      *int
	RecipientEmails []string
}

// CreateJob creates a PENDING job plus one PENDING grant per recipient email,
// each with a fresh unique access code, and queues an invitation per grant.
// The job, grants, and invitations commit as one unit or not at all.
func (s *Scheduler) CreateJob(ctx context.Context, p CreateJobParams) (models.ScheduledJob, error) {
	if !p.ScheduleType.Known() {
		return models.ScheduledJob{}, invalidArgument("unknown schedule type %q", p.ScheduleType)
	}
	if p.JobType != models.JobMessageDelivery && p.JobType != models.JobAssetDelivery {
		return models.ScheduledJob{}, invalidArgument("unknown job type %q", p.JobType)
	}
	if p.ScheduleType == models.ScheduleAbsolute && p.ExactTime == nil {
		return models.ScheduledJob{}, invalidArgument("absolute schedule requires an exact time")
	}
	if p.ScheduleType.NeedsOffset() && p.TimeOffset == nil {
		return models.ScheduledJob{}, invalidArgument("schedule type %q requires a time offset", p.ScheduleType)
	}
	if len(p.RecipientEmails) == 0 {
		return models.ScheduledJob{}, invalidArgument("at least one recipient email is required")
	}

	ok, err := s.users.UserExists(ctx, p.OwnerID)
	if err != nil {
		return models.ScheduledJob{}, Persistence("lookup owner", err)
	}
	if !ok {
		return models.ScheduledJob{}, notFound("owner %s", p.OwnerID)
	}

	now := time.Now().UTC()
	job := models.ScheduledJob{
		ID:           uuid.New(),
		OwnerID:      p.OwnerID,
		EntityID:     p.EntityID,
		JobType:      p.JobType,
		ScheduleType: p.ScheduleType,
		Status:       models.JobPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.ScheduleType == models.ScheduleAbsolute {
		job.ScheduledFor = models.ResolvedAt(p.ExactTime.UTC())
	} else {
		if p.ScheduleType.NeedsOffset() {
			offset := *p.TimeOffset
			job.TimeOffset = &offset
		}
		job.ScheduledFor = models.Unresolved()
	}

	recipients := make([]models.JobRecipient, 0, len(p.RecipientEmails))
	invitations := make([]models.Invitation, 0, len(p.RecipientEmails))
	for _, email := range p.RecipientEmails {
		grant := models.JobRecipient{
			ID:                    uuid.New(),
			JobID:                 job.ID,
			Email:                 email,
			AccessCode:            uuid.NewString(),
			Status:                models.GrantPending,
			ScheduledDeliveryTime: job.ScheduledFor,
			AccessCreatedAt:       now,
		}
		recipients = append(recipients, grant)
		invitations = append(invitations, models.Invitation{
			ID:         uuid.New(),
			JobID:      job.ID,
			Email:      email,
			AccessCode: grant.AccessCode,
			Status:     models.InvitationPending,
			CreatedAt:  now,
		})
	}

	if err := s.jobs.CreateJobWithRecipients(ctx, job, recipients, invitations); err != nil {
		return models.ScheduledJob{}, Persistence("create job", err)
	}
	telemetry.JobsCreated.Inc()

	if s.due != nil && job.ScheduledFor.Resolved {
		if err := s.due.Add(ctx, job.ID, job.ScheduledFor.At); err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("due index add failed")
		}
	}
	return job, nil
}

// OnDeathConfirmed resolves every PENDING death-anchored job for the owner
// against the confirmation instant. Jobs whose computed time has already
// passed complete immediately. Each job (with its recipients) is its own
// atomic unit, so a failure partway leaves earlier jobs correctly advanced.
func (s *Scheduler) OnDeathConfirmed(ctx context.Context, ownerID uuid.UUID, referenceInstant time.Time) error {
	return s.resolvePending(ctx, ownerID, models.DeathSchedules, referenceInstant)
}

// OnTriggerFired resolves inactivity-anchored jobs when an owner's INACTIVITY
// or MANUAL trigger is activated. DATE triggers resolve nothing here: absolute
// jobs already know their time and fire from the due loop.
func (s *Scheduler) OnTriggerFired(ctx context.Context, ownerID uuid.UUID, triggerType models.TriggerType, referenceInstant time.Time) error {
	switch triggerType {
	case models.TriggerInactivity, models.TriggerManual:
		return s.resolvePending(ctx, ownerID, models.InactivitySchedules, referenceInstant)
	case models.TriggerDeathConfirmed:
		return s.resolvePending(ctx, ownerID, models.DeathSchedules, referenceInstant)
	}
	return nil
}

func (s *Scheduler) resolvePending(ctx context.Context, ownerID uuid.UUID, types []models.ScheduleType, anchor time.Time) error {
	jobs, err := s.jobs.PendingJobsBySchedule(ctx, ownerID, types)
	if err != nil {
		return Persistence("select pending jobs", err)
	}

	var firstErr error
	for _, job := range jobs {
		offset := 0
		if job.TimeOffset != nil {
			offset = *job.TimeOffset
		}
		at, err := deliveryTimeFor(job.ScheduleType, offset, anchor)
		if err != nil {
			// Misconfigured row; record and keep going.
			if ferr := s.jobs.FailJob(ctx, job.ID, err.Error()); ferr != nil && firstErr == nil {
				firstErr = Persistence("fail job", ferr)
			}
			telemetry.JobsFailed.Inc()
			continue
		}

		now := time.Now().UTC()
		var executedAt *time.Time
		if !at.After(now) {
			executedAt = &now
		}
		if err := s.jobs.ResolveJob(ctx, job.ID, at, executedAt); err != nil {
			if firstErr == nil {
				firstErr = Persistence("resolve job", err)
			}
			continue
		}

		if executedAt != nil {
			telemetry.JobsCompleted.Inc()
			continue
		}
		if s.due != nil {
			if err := s.due.Add(ctx, job.ID, at); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("due index add failed")
			}
		}
	}
	return firstErr
}

// FireAbsoluteJob completes a PENDING ABSOLUTE job. Calling it for a job that
// is not absolute or no longer pending is a harmless no-op, which lets an
// external cron caller invoke it at-least-once without deduplication.
func (s *Scheduler) FireAbsoluteJob(ctx context.Context, jobID uuid.UUID) error {
	job, found, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Persistence("get job", err)
	}
	if !found {
		return notFound("job %s", jobID)
	}
	if job.ScheduleType != models.ScheduleAbsolute || job.Status != models.JobPending {
		return nil
	}
	return s.complete(ctx, jobID)
}

// FireDueJob completes any PENDING job whose resolved delivery time has
// arrived. The firing loop uses it for both absolute jobs and relative jobs
// that resolved to a future instant.
func (s *Scheduler) FireDueJob(ctx context.Context, jobID uuid.UUID) error {
	job, found, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Persistence("get job", err)
	}
	if !found {
		return notFound("job %s", jobID)
	}
	if job.Status != models.JobPending || !job.ScheduledFor.Resolved || job.ScheduledFor.At.After(time.Now().UTC()) {
		return nil
	}
	return s.complete(ctx, jobID)
}

func (s *Scheduler) complete(ctx context.Context, jobID uuid.UUID) error {
	completed, err := s.jobs.CompleteJob(ctx, jobID, time.Now().UTC())
	if err != nil {
		return Persistence("complete job", err)
	}
	if !completed {
		return nil
	}
	telemetry.JobsCompleted.Inc()
	if s.due != nil {
		if err := s.due.Remove(ctx, jobID); err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID.String()).Msg("due index remove failed")
		}
	}
	s.log.Info().Str("job_id", jobID.String()).Msg("job completed")
	return nil
}

// GetJob fetches a job for API reads.
func (s *Scheduler) GetJob(ctx context.Context, jobID uuid.UUID) (models.ScheduledJob, error) {
	job, found, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return models.ScheduledJob{}, Persistence("get job", err)
	}
	if !found {
		return models.ScheduledJob{}, notFound("job %s", jobID)
	}
	return job, nil
}
