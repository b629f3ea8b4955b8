package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"legacy-scheduler/internal/models"
)

type staticURLs struct{ base string }

func (s staticURLs) DownloadURL(_ context.Context, key string) (string, error) {
	if s.base == "" {
		return "", fmt.Errorf("presign unavailable")
	}
	return s.base + "/" + key, nil
}

func seedDeliveredContent(store *memStore, owner, trustee uuid.UUID, jobStatus models.JobStatus, grantStatus models.GrantStatus, jobType models.JobType) uuid.UUID {
	entityID := uuid.New()
	now := time.Now().UTC()
	job := models.ScheduledJob{
		ID: uuid.New(), OwnerID: owner, EntityID: entityID,
		JobType: jobType, ScheduleType: models.ScheduleImmediatelyAfterConfirm,
		Status: jobStatus, CreatedAt: now, UpdatedAt: now,
	}
	store.jobs[job.ID] = job

	grant := models.JobRecipient{
		ID: uuid.New(), JobID: job.ID, Email: "heir@example.com",
		AccessCode: uuid.NewString(), Status: grantStatus, AccessCreatedAt: now,
	}
	if grantStatus == models.GrantRegistered {
		grant.TrusteeID = &trustee
		grant.AccessRegisteredAt = &now
	}
	store.grants[grant.ID] = grant

	switch jobType {
	case models.JobMessageDelivery:
		store.messages[entityID] = models.Message{ID: entityID, OwnerID: owner, Subject: "for you", Body: "goodbye", CreatedAt: now}
	case models.JobAssetDelivery:
		store.assets[entityID] = models.DigitalAsset{ID: entityID, OwnerID: owner, Name: "photo", ObjectKey: "assets/" + entityID.String(), MimeType: "image/jpeg", CreatedAt: now}
	}
	return entityID
}

func TestResolveContentRequiresBothGates(t *testing.T) {
	store := newMemStore()
	owner := store.addUser()
	trustee := store.addUser()
	gate := NewGate(store, store, store, nil, zerolog.Nop())
	ctx := context.Background()

	visible := seedDeliveredContent(store, owner, trustee, models.JobCompleted, models.GrantRegistered, models.JobMessageDelivery)
	// Registered grant but the job never fired.
	seedDeliveredContent(store, owner, trustee, models.JobPending, models.GrantRegistered, models.JobMessageDelivery)
	// Job fired but the grant was never claimed.
	seedDeliveredContent(store, owner, trustee, models.JobCompleted, models.GrantPending, models.JobMessageDelivery)
	// Registered then revoked.
	seedDeliveredContent(store, owner, trustee, models.JobCompleted, models.GrantRevoked, models.JobMessageDelivery)

	content, err := gate.ResolveContentForTrustee(ctx, trustee)
	if err != nil {
		t.Fatalf("ResolveContentForTrustee: %v", err)
	}
	if len(content.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(content.Messages))
	}
	if content.Messages[0].ID != visible {
		t.Errorf("got message %s, want %s", content.Messages[0].ID, visible)
	}
	if len(content.Assets) != 0 {
		t.Errorf("got %d assets, want 0", len(content.Assets))
	}
}

func TestResolveContentEmptyForStranger(t *testing.T) {
	store := newMemStore()
	owner := store.addUser()
	trustee := store.addUser()
	gate := NewGate(store, store, store, nil, zerolog.Nop())

	seedDeliveredContent(store, owner, trustee, models.JobCompleted, models.GrantRegistered, models.JobMessageDelivery)

	content, err := gate.ResolveContentForTrustee(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ResolveContentForTrustee: %v", err)
	}
	if content.Messages == nil || content.Assets == nil {
		t.Fatal("empty result must use empty slices, not nil")
	}
	if len(content.Messages) != 0 || len(content.Assets) != 0 {
		t.Errorf("stranger sees %d messages and %d assets, want none", len(content.Messages), len(content.Assets))
	}
}

func TestResolveContentAttachesDownloadURL(t *testing.T) {
	store := newMemStore()
	owner := store.addUser()
	trustee := store.addUser()
	ctx := context.Background()

	entityID := seedDeliveredContent(store, owner, trustee, models.JobCompleted, models.GrantRegistered, models.JobAssetDelivery)

	gate := NewGate(store, store, store, staticURLs{base: "https://cdn.example.com"}, zerolog.Nop())
	content, err := gate.ResolveContentForTrustee(ctx, trustee)
	if err != nil {
		t.Fatalf("ResolveContentForTrustee: %v", err)
	}
	if len(content.Assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(content.Assets))
	}
	want := "https://cdn.example.com/assets/" + entityID.String()
	if content.Assets[0].DownloadURL != want {
		t.Errorf("download url = %q, want %q", content.Assets[0].DownloadURL, want)
	}

	// Presign failures still deliver the metadata.
	gate = NewGate(store, store, store, staticURLs{}, zerolog.Nop())
	content, err = gate.ResolveContentForTrustee(ctx, trustee)
	if err != nil {
		t.Fatalf("ResolveContentForTrustee: %v", err)
	}
	if len(content.Assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(content.Assets))
	}
	if content.Assets[0].DownloadURL != "" {
		t.Errorf("download url = %q, want empty on presign failure", content.Assets[0].DownloadURL)
	}
}
