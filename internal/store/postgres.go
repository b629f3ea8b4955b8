package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"legacy-scheduler/internal/models"
)

// Store wraps pgxpool for Postgres persistence. It implements the engine's
// store interfaces.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UserExists checks the identity table for an owner or trustee ID.
func (s *Store) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if t.Valid {
		v := t.Time
		return &v
	}
	return nil
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if u.Valid {
		v := uuid.UUID(u.Bytes)
		return &v
	}
	return nil
}

// deliveryTime maps a nullable timestamptz to the explicit resolved/unresolved
// union used in the domain model.
func deliveryTime(t pgtype.Timestamptz) models.DeliveryTime {
	if t.Valid {
		return models.ResolvedAt(t.Time)
	}
	return models.Unresolved()
}

// nullableDelivery maps the union back to a driver-level nullable for inserts.
func nullableDelivery(d models.DeliveryTime) *time.Time {
	if d.Resolved {
		v := d.At
		return &v
	}
	return nil
}
