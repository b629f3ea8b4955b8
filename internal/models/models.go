package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TriggerType enumerates the conditions an owner can configure for delivery.
type TriggerType string

const (
	TriggerDate           TriggerType = "DATE"
	TriggerInactivity     TriggerType = "INACTIVITY"
	TriggerManual         TriggerType = "MANUAL"
	TriggerDeathConfirmed TriggerType = "DEATH_CONFIRMED"
)

// ConfirmationStatus tracks a trustee's death attestation.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "PENDING"
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
	ConfirmationRejected  ConfirmationStatus = "REJECTED"
)

// JobType names the kind of content a scheduled job delivers.
type JobType string

const (
	JobMessageDelivery JobType = "MESSAGE_DELIVERY"
	JobAssetDelivery   JobType = "ASSET_DELIVERY"
)

// ScheduleType determines how a job's delivery time is computed.
type ScheduleType string

const (
	ScheduleAbsolute                ScheduleType = "ABSOLUTE"
	ScheduleImmediatelyAfterConfirm ScheduleType = "IMMEDIATELY_AFTER_CONFIRMATION"
	ScheduleDaysAfterDeath          ScheduleType = "RELATIVE_DAYS_AFTER_DEATH"
	ScheduleWeeksAfterDeath         ScheduleType = "RELATIVE_WEEKS_AFTER_DEATH"
	ScheduleMonthsAfterDeath        ScheduleType = "RELATIVE_MONTHS_AFTER_DEATH"
	ScheduleYearsAfterDeath         ScheduleType = "RELATIVE_YEARS_AFTER_DEATH"
	ScheduleDaysAfterInactivity     ScheduleType = "RELATIVE_DAYS_AFTER_INACTIVITY"
	ScheduleWeeksAfterInactivity    ScheduleType = "RELATIVE_WEEKS_AFTER_INACTIVITY"
)

// NeedsOffset reports whether the schedule type requires a time offset.
func (s ScheduleType) NeedsOffset() bool {
	switch s {
	case ScheduleDaysAfterDeath, ScheduleWeeksAfterDeath, ScheduleMonthsAfterDeath,
		ScheduleYearsAfterDeath, ScheduleDaysAfterInactivity, ScheduleWeeksAfterInactivity:
		return true
	}
	return false
}

// Known reports whether s is one of the recognized schedule types.
func (s ScheduleType) Known() bool {
	return s == ScheduleAbsolute || s == ScheduleImmediatelyAfterConfirm || s.NeedsOffset()
}

// DeathSchedules are the schedule types anchored to a death confirmation.
var DeathSchedules = []ScheduleType{
	ScheduleImmediatelyAfterConfirm,
	ScheduleDaysAfterDeath,
	ScheduleWeeksAfterDeath,
	ScheduleMonthsAfterDeath,
	ScheduleYearsAfterDeath,
}

// InactivitySchedules are the schedule types anchored to a trigger activation.
var InactivitySchedules = []ScheduleType{
	ScheduleDaysAfterInactivity,
	ScheduleWeeksAfterInactivity,
}

// JobStatus is the scheduled job lifecycle. PENDING is the only non-terminal state.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// GrantStatus is the access grant lifecycle. REVOKED is terminal either way.
type GrantStatus string

const (
	GrantPending    GrantStatus = "PENDING"
	GrantRegistered GrantStatus = "REGISTERED"
	GrantRevoked    GrantStatus = "REVOKED"
)

// DeliveryTime is a delivery instant that may not be known yet. Relative jobs
// stay unresolved until a firing event supplies an anchor.
type DeliveryTime struct {
	Resolved bool
	At       time.Time
}

// ResolvedAt wraps a known instant.
func ResolvedAt(t time.Time) DeliveryTime {
	return DeliveryTime{Resolved: true, At: t}
}

// Unresolved is the zero delivery time.
func Unresolved() DeliveryTime {
	return DeliveryTime{}
}

func (d DeliveryTime) MarshalJSON() ([]byte, error) {
	if !d.Resolved {
		return []byte("null"), nil
	}
	return json.Marshal(d.At)
}

func (d *DeliveryTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DeliveryTime{}
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*d = DeliveryTime{Resolved: true, At: t}
	return nil
}

// Trigger is an owner's configured delivery condition persisted in Postgres.
type Trigger struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Type      TriggerType     `json:"type"`
	Config    json.RawMessage `json:"config"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// DeathConfirmation is a trustee's attestation that an owner has died.
// ConfirmedAt is stamped exactly once, on the PENDING -> CONFIRMED transition.
type DeathConfirmation struct {
	ID          uuid.UUID          `json:"id"`
	OwnerID     uuid.UUID          `json:"owner_id"`
	TrusteeID   uuid.UUID          `json:"trustee_id"`
	Status      ConfirmationStatus `json:"status"`
	ConfirmedAt *time.Time         `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ScheduledJob is one pending delivery of a message or asset.
// EntityID references content the engine never dereferences itself.
type ScheduledJob struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner_id"`
	EntityID     uuid.UUID    `json:"entity_id"`
	JobType      JobType      `json:"job_type"`
	ScheduleType ScheduleType `json:"schedule_type"`
	TimeOffset   *int         `json:"time_offset,omitempty"`
	ScheduledFor DeliveryTime `json:"scheduled_for"`
	Status       JobStatus    `json:"status"`
	ExecutedAt   *time.Time   `json:"executed_at,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// JobRecipient is a per-recipient access grant on a job. TrusteeID stays nil
// until the recipient claims the access code.
type JobRecipient struct {
	ID                    uuid.UUID    `json:"id"`
	JobID                 uuid.UUID    `json:"job_id"`
	Email                 string       `json:"email"`
	TrusteeID             *uuid.UUID   `json:"trustee_id,omitempty"`
	AccessCode            string       `json:"access_code"`
	Status                GrantStatus  `json:"status"`
	ScheduledDeliveryTime DeliveryTime `json:"scheduled_delivery_time"`
	AccessCreatedAt       time.Time    `json:"access_created_at"`
	AccessRegisteredAt    *time.Time   `json:"access_registered_at,omitempty"`
}

// Message is a pre-staged message row. The engine treats it as opaque content.
type Message struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DigitalAsset is stored asset metadata. The payload lives in the object store
// under ObjectKey; DownloadURL is filled in at read time and never persisted.
type DigitalAsset struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ObjectKey    string    `json:"object_key"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
	DownloadURL  string    `json:"download_url,omitempty"`
}

// TrusteeContent is everything a trustee is currently entitled to see.
type TrusteeContent struct {
	Messages []Message      `json:"messages"`
	Assets   []DigitalAsset `json:"assets"`
}

// InvitationStatus is the outbox row lifecycle for access-code notifications.
type InvitationStatus string

const (
	InvitationPending InvitationStatus = "PENDING"
	InvitationSent    InvitationStatus = "SENT"
	InvitationFailed  InvitationStatus = "FAILED"
)

// Invitation is an outbox row asking the notifier to send an access code to a
// recipient email. Rows are written in the same transaction as the grant and
// drained asynchronously; a send failure never touches the grant.
type Invitation struct {
	ID         uuid.UUID        `json:"id"`
	JobID      uuid.UUID        `json:"job_id"`
	Email      string           `json:"email"`
	AccessCode string           `json:"access_code"`
	Status     InvitationStatus `json:"status"`
	Attempts   int              `json:"attempts"`
	LastError  *string          `json:"last_error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	SentAt     *time.Time       `json:"sent_at,omitempty"`
}
