package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"legacy-scheduler/internal/models"
)

// Thin persistence for the content the engine references by entity ID. The
// delivery engine never interprets these rows; it only hands them to trustees
// once the double gate opens.

// CreateMessage inserts a pre-staged message.
func (s *Store) CreateMessage(ctx context.Context, m models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, owner_id, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.OwnerID, m.Subject, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// MessageByID fetches a message.
func (s *Store) MessageByID(ctx context.Context, id uuid.UUID) (models.Message, bool, error) {
	var m models.Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, subject, body, created_at FROM messages WHERE id = $1
	`, id).Scan(&m.ID, &m.OwnerID, &m.Subject, &m.Body, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Message{}, false, nil
	}
	if err != nil {
		return models.Message{}, false, fmt.Errorf("scan message: %w", err)
	}
	return m, true, nil
}

// CreateAsset inserts digital-asset metadata.
func (s *Store) CreateAsset(ctx context.Context, a models.DigitalAsset) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO digital_assets (id, owner_id, name, description, object_key, thumbnail_key, mime_type, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.OwnerID, a.Name, a.Description, a.ObjectKey, a.ThumbnailKey, a.MimeType, a.FileSize, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// AssetByID fetches asset metadata.
func (s *Store) AssetByID(ctx context.Context, id uuid.UUID) (models.DigitalAsset, bool, error) {
	var (
		a        models.DigitalAsset
		thumbKey pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, object_key, thumbnail_key, mime_type, file_size, created_at
		FROM digital_assets WHERE id = $1
	`, id).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.ObjectKey, &thumbKey, &a.MimeType, &a.FileSize, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DigitalAsset{}, false, nil
	}
	if err != nil {
		return models.DigitalAsset{}, false, fmt.Errorf("scan asset: %w", err)
	}
	a.ThumbnailKey = textPtr(thumbKey)
	return a, true, nil
}
