package emergency

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepository implements Repository using the single-row
// emergency_state table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the current state.
func (r *PostgresRepository) Get(ctx context.Context) (*State, error) {
	s := &State{}
	var activatedAt sql.NullTime
	var activator, reason sql.NullString
	var delayOverrideSeconds int64
	err := r.db.QueryRowContext(ctx, `
		SELECT active, level, activated_at, activator, reason, threshold_override, delay_override_seconds
		FROM emergency_state WHERE id = 1
	`).Scan(&s.Active, &s.Level, &activatedAt, &activator, &reason, &s.ThresholdOverride, &delayOverrideSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to read emergency state: %w", err)
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		s.ActivatedAt = &t
	}
	s.Activator = activator.String
	s.Reason = reason.String
	s.DelayOverride = time.Duration(delayOverrideSeconds) * time.Second
	return s, nil
}

// Set atomically replaces the state record.
func (r *PostgresRepository) Set(ctx context.Context, s *State) error {
	var activatedAt any
	if s.ActivatedAt != nil {
		activatedAt = *s.ActivatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE emergency_state
		SET active = $1, level = $2, activated_at = $3, activator = $4, reason = $5,
		    threshold_override = $6, delay_override_seconds = $7
		WHERE id = 1
	`, s.Active, s.Level, activatedAt, s.Activator, s.Reason, s.ThresholdOverride, int64(s.DelayOverride/time.Second))
	if err != nil {
		return fmt.Errorf("failed to write emergency state: %w", err)
	}
	return nil
}
