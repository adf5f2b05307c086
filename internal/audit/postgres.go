package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/quorumgate/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Sequence ids are
// assigned inside a transaction holding the previous row, so the hash chain
// stays consistent under the single-writer assumption the engine runs with.
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

// Append records a new entry chained to the current log head.
func (r *PostgresRepository) Append(ctx context.Context, rec Record) (entry *Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "audit_log", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	outcome := rec.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback audit transaction", slog.String("error", err.Error()))
		}
	}()

	var prev Entry
	var prevHash string
	err = tx.QueryRowContext(ctx, `
		SELECT seq, id, actor, action, digest, outcome, created_at, previous_hash
		FROM audit_log ORDER BY seq DESC LIMIT 1
	`).Scan(&prev.Seq, &prev.ID, &prev.Actor, &prev.Action, &prev.Digest, &prev.Outcome, &prev.CreatedAt, &prev.PreviousHash)
	switch err {
	case nil:
		prevHash = ChainHash(&prev)
	case sql.ErrNoRows:
		prevHash = ""
	default:
		return nil, fmt.Errorf("failed to read audit head: %w", err)
	}

	entry = &Entry{
		Seq:          prev.Seq + 1,
		ID:           uuid.New().String(),
		Actor:        rec.Actor,
		Action:       rec.Action,
		Digest:       rec.Digest,
		Outcome:      outcome,
		CreatedAt:    time.Now().UTC(),
		PreviousHash: prevHash,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (seq, id, actor, action, digest, outcome, created_at, previous_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.Seq, entry.ID, entry.Actor, entry.Action, entry.Digest, entry.Outcome, entry.CreatedAt, entry.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit audit entry: %w", err)
	}
	return entry, nil
}

// Range returns entries with from <= seq <= to, oldest first.
func (r *PostgresRepository) Range(ctx context.Context, from, to int64, limit int) ([]*Entry, error) {
	if from < 0 || to < 0 || (to != 0 && to < from) {
		return nil, ErrInvalidRange
	}

	query := `
		SELECT seq, id, actor, action, digest, outcome, created_at, previous_hash
		FROM audit_log WHERE seq >= $1
	`
	args := []any{from}
	if to != 0 {
		query += ` AND seq <= $2`
		args = append(args, to)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var results []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.Seq, &e.ID, &e.Actor, &e.Action, &e.Digest, &e.Outcome, &e.CreatedAt, &e.PreviousHash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// LastSeq returns the highest assigned sequence id, 0 when the log is empty.
func (r *PostgresRepository) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM audit_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit head: %w", err)
	}
	return seq.Int64, nil
}
