package action

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/quorumgate/internal/policy"
)

// uniqueViolation is the PostgreSQL error code raised by the
// (action_id, signer) unique index on signatures.
const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL. Signature
// insertion and weight accumulation happen in one transaction so no reader
// observes a partially-applied signature.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Insert stores a new action.
func (r *PostgresRepository) Insert(ctx context.Context, a *Action) error {
	var dispatched any
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actions (id, target, value, payload, nonce, created_at, deadline, creator,
		                     class, required_weight, collected_weight, status, digest,
		                     dispatch_success, dispatch_detail, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL, NULL, $14)
	`, a.ID, a.Target, a.Value, a.Payload, a.Nonce, a.CreatedAt, a.Deadline, a.Creator,
		string(a.Class), a.RequiredWeight, a.CollectedWeight, string(a.Status), a.Digest, dispatched)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// Get retrieves an action with its signatures.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Action, error) {
	a := &Action{}
	var class, status string
	var dispatchSuccess sql.NullBool
	var dispatchDetail sql.NullString
	var dispatchedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, target, value, payload, nonce, created_at, deadline, creator,
		       class, required_weight, collected_weight, status, digest,
		       dispatch_success, dispatch_detail, dispatched_at
		FROM actions WHERE id = $1
	`, id).Scan(&a.ID, &a.Target, &a.Value, &a.Payload, &a.Nonce, &a.CreatedAt, &a.Deadline, &a.Creator,
		&class, &a.RequiredWeight, &a.CollectedWeight, &status, &a.Digest,
		&dispatchSuccess, &dispatchDetail, &dispatchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query action: %w", err)
	}
	a.Class = policy.Class(class)
	a.Status = Status(status)
	if dispatchSuccess.Valid {
		a.DispatchResult = &DispatchResult{
			Success:      dispatchSuccess.Bool,
			Detail:       dispatchDetail.String,
			DispatchedAt: dispatchedAt.Time,
		}
	}

	sigs, err := r.signatures(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Signatures = sigs
	return a, nil
}

func (r *PostgresRepository) signatures(ctx context.Context, actionID string) ([]*Signature, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_id, signer, signature, digest, class, created_at
		FROM signatures WHERE action_id = $1 ORDER BY created_at
	`, actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	var results []*Signature
	for rows.Next() {
		sig := &Signature{}
		if err := rows.Scan(&sig.ActionID, &sig.Signer, &sig.Signature, &sig.Digest, &sig.Class, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		results = append(results, sig)
	}
	return results, rows.Err()
}

// Update replaces the mutable fields of an action.
func (r *PostgresRepository) Update(ctx context.Context, a *Action) error {
	var success, detail, dispatchedAt any
	if a.DispatchResult != nil {
		success = a.DispatchResult.Success
		detail = a.DispatchResult.Detail
		dispatchedAt = a.DispatchResult.DispatchedAt
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE actions
		SET status = $2, collected_weight = $3, dispatch_success = $4, dispatch_detail = $5, dispatched_at = $6
		WHERE id = $1
	`, a.ID, string(a.Status), a.CollectedWeight, success, detail, dispatchedAt)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplySignature stores a signature and the new collected weight in one
// transaction, relying on the unique index for the one-per-(action, signer)
// invariant. A failure at any point rolls back both writes.
func (r *PostgresRepository) ApplySignature(ctx context.Context, sig *Signature, collectedWeight int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO signatures (action_id, signer, signature, digest, class, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sig.ActionID, sig.Signer, sig.Signature, sig.Digest, sig.Class, sig.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateSignature
		}
		return fmt.Errorf("failed to insert signature: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE actions SET collected_weight = $2 WHERE id = $1
	`, sig.ActionID, collectedWeight)
	if err != nil {
		return fmt.Errorf("failed to accumulate signature weight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signature: %w", err)
	}
	return nil
}

// NextNonce returns the next value of the monotonic nonce sequence.
func (r *PostgresRepository) NextNonce(ctx context.Context) (int64, error) {
	var nonce int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('action_nonce_seq')`).Scan(&nonce); err != nil {
		return 0, fmt.Errorf("failed to advance nonce sequence: %w", err)
	}
	return nonce, nil
}

// ListPendingExpiredBefore returns pending actions whose deadline is at or
// before the cutoff, oldest first.
func (r *PostgresRepository) ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Action, error) {
	query := `
		SELECT id FROM actions
		WHERE status = $1 AND deadline <= $2
		ORDER BY deadline
	`
	args := []any{string(StatusPending), cutoff}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired actions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan action id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []*Action
	for _, id := range ids {
		a, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, nil
}

// CountPending returns the number of pending actions.
func (r *PostgresRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM actions WHERE status = $1
	`, string(StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return n, nil
}
