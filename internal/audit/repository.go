package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Validation errors for audit records.
var (
	ErrInvalidActor  = errors.New("audit actor cannot be empty")
	ErrInvalidAction = errors.New("audit action cannot be empty")
	ErrInvalidRange  = errors.New("audit range is invalid")
)

// Recorder is the write-side interface other components depend on. There is
// deliberately no update or delete counterpart.
type Recorder interface {
	// Append records a new entry and returns it with its assigned sequence id.
	Append(ctx context.Context, rec Record) (*Entry, error)
}

// Repository is the full audit log interface: append plus range reads.
type Repository interface {
	Recorder

	// Range returns entries with from <= seq <= to, ordered by sequence.
	// A to of 0 means no upper bound. Limit caps the result size (0 = no limit).
	Range(ctx context.Context, from, to int64, limit int) ([]*Entry, error)

	// LastSeq returns the highest assigned sequence id, 0 when empty.
	LastSeq(ctx context.Context) (int64, error)
}

func validateRecord(rec Record) error {
	if rec.Actor == "" {
		return ErrInvalidActor
	}
	if rec.Action == "" {
		return ErrInvalidAction
	}
	return nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append records a new entry, assigning the next sequence id and chaining it
// to the previous entry's hash.
func (r *InMemoryRepository) Append(ctx context.Context, rec Record) (*Entry, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	outcome := rec.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &Entry{
		Seq:       int64(len(r.entries)) + 1,
		ID:        uuid.New().String(),
		Actor:     rec.Actor,
		Action:    rec.Action,
		Digest:    rec.Digest,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	if n := len(r.entries); n > 0 {
		entry.PreviousHash = ChainHash(r.entries[n-1])
	}
	r.entries = append(r.entries, entry)

	// Return a copy to prevent external modification
	entryCopy := *entry
	return &entryCopy, nil
}

// Range returns entries within the sequence window, oldest first.
func (r *InMemoryRepository) Range(ctx context.Context, from, to int64, limit int) ([]*Entry, error) {
	if from < 0 || to < 0 || (to != 0 && to < from) {
		return nil, ErrInvalidRange
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for _, e := range r.entries {
		if e.Seq < from {
			continue
		}
		if to != 0 && e.Seq > to {
			break
		}
		entryCopy := *e
		results = append(results, &entryCopy)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// LastSeq returns the highest assigned sequence id.
func (r *InMemoryRepository) LastSeq(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

// VerifyChain walks the full log and reports the first sequence id whose
// PreviousHash does not match the recomputed hash of its predecessor.
// Returns 0 when the chain is intact.
func (r *InMemoryRepository) VerifyChain(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 1; i < len(r.entries); i++ {
		if r.entries[i].PreviousHash != ChainHash(r.entries[i-1]) {
			return r.entries[i].Seq, nil
		}
	}
	return 0, nil
}
