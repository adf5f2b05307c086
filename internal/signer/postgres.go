package signer

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL. The threshold
// lives in the single-row registry_config table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new signer record.
func (r *PostgresRepository) Insert(ctx context.Context, s *Signer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signers (identity, weight, active, enrolled_at, last_used_at, signature_count, trust_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.Identity, s.Weight, s.Active, s.EnrolledAt, s.LastUsedAt, s.SignatureCount, s.TrustScore)
	if err != nil {
		return fmt.Errorf("failed to insert signer: %w", err)
	}
	return nil
}

// Get retrieves a signer by identity, active or not.
func (r *PostgresRepository) Get(ctx context.Context, identity string) (*Signer, error) {
	s := &Signer{}
	err := r.db.QueryRowContext(ctx, `
		SELECT identity, weight, active, enrolled_at, last_used_at, signature_count, trust_score
		FROM signers WHERE identity = $1
	`, identity).Scan(&s.Identity, &s.Weight, &s.Active, &s.EnrolledAt, &s.LastUsedAt, &s.SignatureCount, &s.TrustScore)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidSigner
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signer: %w", err)
	}
	return s, nil
}

// Update replaces the stored record for the signer's identity.
func (r *PostgresRepository) Update(ctx context.Context, s *Signer) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE signers
		SET weight = $2, active = $3, enrolled_at = $4, last_used_at = $5, signature_count = $6, trust_score = $7
		WHERE identity = $1
	`, s.Identity, s.Weight, s.Active, s.EnrolledAt, s.LastUsedAt, s.SignatureCount, s.TrustScore)
	if err != nil {
		return fmt.Errorf("failed to update signer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrInvalidSigner
	}
	return nil
}

// ListActive returns all active signers ordered by identity.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Signer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT identity, weight, active, enrolled_at, last_used_at, signature_count, trust_score
		FROM signers WHERE active ORDER BY identity
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list signers: %w", err)
	}
	defer rows.Close()

	var results []*Signer
	for rows.Next() {
		s := &Signer{}
		if err := rows.Scan(&s.Identity, &s.Weight, &s.Active, &s.EnrolledAt, &s.LastUsedAt, &s.SignatureCount, &s.TrustScore); err != nil {
			return nil, fmt.Errorf("failed to scan signer: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// Threshold returns the currently configured quorum threshold.
func (r *PostgresRepository) Threshold(ctx context.Context) (int64, error) {
	var threshold int64
	err := r.db.QueryRowContext(ctx, `SELECT threshold FROM registry_config WHERE id = 1`).Scan(&threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to read threshold: %w", err)
	}
	return threshold, nil
}

// SetThreshold stores a new quorum threshold.
func (r *PostgresRepository) SetThreshold(ctx context.Context, threshold int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE registry_config SET threshold = $1 WHERE id = 1`, threshold)
	if err != nil {
		return fmt.Errorf("failed to set threshold: %w", err)
	}
	return nil
}
