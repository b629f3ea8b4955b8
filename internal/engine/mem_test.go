package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"legacy-scheduler/internal/models"
)

// memStore is an in-memory stand-in for the postgres store, implementing every
// store interface the engine consumes.
type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]bool
	confirmations map[uuid.UUID]models.DeathConfirmation
	jobs          map[uuid.UUID]models.ScheduledJob
	grants        map[uuid.UUID]models.JobRecipient
	triggers      map[uuid.UUID]models.Trigger
	messages      map[uuid.UUID]models.Message
	assets        map[uuid.UUID]models.DigitalAsset
	invitations   []models.Invitation
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uuid.UUID]bool{},
		confirmations: map[uuid.UUID]models.DeathConfirmation{},
		jobs:          map[uuid.UUID]models.ScheduledJob{},
		grants:        map[uuid.UUID]models.JobRecipient{},
		triggers:      map[uuid.UUID]models.Trigger{},
		messages:      map[uuid.UUID]models.Message{},
		assets:        map[uuid.UUID]models.DigitalAsset{},
	}
}

func (m *memStore) addUser() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = true
	return id
}

func (m *memStore) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) CreateConfirmation(_ context.Context, c models.DeathConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations[c.ID] = c
	return nil
}

func (m *memStore) GetConfirmation(_ context.Context, id uuid.UUID) (models.DeathConfirmation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.confirmations[id]
	return c, ok, nil
}

func (m *memStore) SetConfirmationStatus(_ context.Context, id uuid.UUID, status models.ConfirmationStatus, confirmedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.confirmations[id]
	c.Status = status
	if c.ConfirmedAt == nil {
		c.ConfirmedAt = confirmedAt
	}
	m.confirmations[id] = c
	return nil
}

func (m *memStore) LatestConfirmation(_ context.Context, ownerID uuid.UUID) (models.DeathConfirmation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest models.DeathConfirmation
	found := false
	for _, c := range m.confirmations {
		if c.OwnerID != ownerID || c.Status != models.ConfirmationConfirmed {
			continue
		}
		if !found || c.ConfirmedAt.After(*latest.ConfirmedAt) {
			latest = c
			found = true
		}
	}
	return latest, found, nil
}

func (m *memStore) CreateJobWithRecipients(_ context.Context, job models.ScheduledJob, recipients []models.JobRecipient, invitations []models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	for _, r := range recipients {
		m.grants[r.ID] = r
	}
	m.invitations = append(m.invitations, invitations...)
	return nil
}

func (m *memStore) GetJob(_ context.Context, id uuid.UUID) (models.ScheduledJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

func (m *memStore) PendingJobsBySchedule(_ context.Context, ownerID uuid.UUID, types []models.ScheduleType) ([]models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledJob
	for _, j := range m.jobs {
		if j.OwnerID != ownerID || j.Status != models.JobPending {
			continue
		}
		for _, t := range types {
			if j.ScheduleType == t {
				out = append(out, j)
				break
			}
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
	return out, nil
}

func (m *memStore) ResolveJob(_ context.Context, jobID uuid.UUID, at time.Time, executedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobPending {
		return nil
	}
	j.ScheduledFor = models.ResolvedAt(at)
	if executedAt != nil {
		j.Status = models.JobCompleted
		j.ExecutedAt = executedAt
	}
	j.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = j
	for id, g := range m.grants {
		if g.JobID == jobID {
			g.ScheduledDeliveryTime = models.ResolvedAt(at)
			m.grants[id] = g
		}
	}
	return nil
}

func (m *memStore) CompleteJob(_ context.Context, jobID uuid.UUID, executedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobPending {
		return false, nil
	}
	j.Status = models.JobCompleted
	j.ExecutedAt = &executedAt
	j.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = j
	return true, nil
}

func (m *memStore) FailJob(_ context.Context, jobID uuid.UUID, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobPending {
		return nil
	}
	j.Status = models.JobFailed
	j.ErrorMessage = &msg
	j.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = j
	return nil
}

func (m *memStore) DuePendingJobs(_ context.Context, now time.Time, limit int) ([]models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledJob
	for _, j := range m.jobs {
		if j.Status == models.JobPending && j.ScheduledFor.Resolved && !j.ScheduledFor.At.After(now) {
			out = append(out, j)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ClaimGrant(_ context.Context, accessCode string, trusteeID uuid.UUID, at time.Time) (models.JobRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, g := range m.grants {
		if g.AccessCode != accessCode {
			continue
		}
		if g.Status != models.GrantPending {
			return models.JobRecipient{}, fmt.Errorf("%w: access code is %s", ErrInvalidState, g.Status)
		}
		g.Status = models.GrantRegistered
		g.TrusteeID = &trusteeID
		g.AccessRegisteredAt = &at
		m.grants[id] = g
		return g, nil
	}
	return models.JobRecipient{}, fmt.Errorf("%w: unknown access code", ErrInvalidArgument)
}

func (m *memStore) GrantByCode(_ context.Context, accessCode string) (models.JobRecipient, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.grants {
		if g.AccessCode == accessCode {
			return g, true, nil
		}
	}
	return models.JobRecipient{}, false, nil
}

func (m *memStore) GetGrant(_ context.Context, id uuid.UUID) (models.JobRecipient, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	return g, ok, nil
}

func (m *memStore) RevokeGrant(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.grants[id]
	g.Status = models.GrantRevoked
	m.grants[id] = g
	return nil
}

func (m *memStore) RegisteredGrantsForTrustee(_ context.Context, trusteeID uuid.UUID) ([]models.JobRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobRecipient
	for _, g := range m.grants {
		if g.Status == models.GrantRegistered && g.TrusteeID != nil && *g.TrusteeID == trusteeID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) CreateTrigger(_ context.Context, t models.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t.ID] = t
	return nil
}

func (m *memStore) GetTrigger(_ context.Context, id uuid.UUID) (models.Trigger, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	return t, ok, nil
}

func (m *memStore) SetTriggerActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.triggers[id]
	t.Active = active
	m.triggers[id] = t
	return nil
}

func (m *memStore) TriggersForOwner(_ context.Context, ownerID uuid.UUID) ([]models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trigger
	for _, t := range m.triggers {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTrigger(_ context.Context, ownerID, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	delete(m.triggers, id)
	return true, nil
}

func (m *memStore) MessageByID(_ context.Context, id uuid.UUID) (models.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	return msg, ok, nil
}

func (m *memStore) AssetByID(_ context.Context, id uuid.UUID) (models.DigitalAsset, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	return a, ok, nil
}

// memDueIndex records due-index traffic for assertions.
type memDueIndex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]time.Time
}

func newMemDueIndex() *memDueIndex {
	return &memDueIndex{entries: map[uuid.UUID]time.Time{}}
}

func (d *memDueIndex) Add(_ context.Context, jobID uuid.UUID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[jobID] = at
	return nil
}

func (d *memDueIndex) Remove(_ context.Context, jobID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, jobID)
	return nil
}
