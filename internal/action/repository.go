package action

import (
	"context"
	"sync"
	"time"
)

// Repository defines persistence for actions and their signatures.
type Repository interface {
	// Insert stores a new action.
	Insert(ctx context.Context, a *Action) error

	// Get retrieves an action with its signatures.
	// Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (*Action, error)

	// Update replaces the mutable fields of an action (status, collected
	// weight, dispatch result).
	Update(ctx context.Context, a *Action) error

	// ApplySignature stores a signature and sets the action's collected
	// weight in one atomic operation, so a failed call leaves neither
	// behind. Returns ErrDuplicateSignature if the (action, signer) pair
	// already has one.
	ApplySignature(ctx context.Context, sig *Signature, collectedWeight int64) error

	// NextNonce returns the next value of the per-registry monotonic nonce
	// sequence.
	NextNonce(ctx context.Context) (int64, error)

	// ListPendingExpiredBefore returns pending actions whose deadline is
	// at or before the cutoff, oldest first, up to limit (0 = no limit).
	// The comparison matches the lazy expiry check on read.
	ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Action, error)

	// CountPending returns the number of actions currently in the pending
	// state.
	CountPending(ctx context.Context) (int64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	actions map[string]*Action
	order   []string
	nonce   int64
}

// NewInMemoryRepository creates a new in-memory action repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		actions: make(map[string]*Action),
	}
}

func copyAction(a *Action) *Action {
	actionCopy := *a
	actionCopy.Payload = append([]byte(nil), a.Payload...)
	if a.DispatchResult != nil {
		resultCopy := *a.DispatchResult
		actionCopy.DispatchResult = &resultCopy
	}
	actionCopy.Signatures = make([]*Signature, 0, len(a.Signatures))
	for _, sig := range a.Signatures {
		sigCopy := *sig
		sigCopy.Signature = append([]byte(nil), sig.Signature...)
		actionCopy.Signatures = append(actionCopy.Signatures, &sigCopy)
	}
	return &actionCopy
}

// Insert stores a new action.
func (r *InMemoryRepository) Insert(ctx context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[a.ID] = copyAction(a)
	r.order = append(r.order, a.ID)
	return nil
}

// Get retrieves an action with its signatures.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAction(a), nil
}

// Update replaces the mutable fields of an action.
func (r *InMemoryRepository) Update(ctx context.Context, a *Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.actions[a.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = a.Status
	stored.CollectedWeight = a.CollectedWeight
	if a.DispatchResult != nil {
		resultCopy := *a.DispatchResult
		stored.DispatchResult = &resultCopy
	}
	return nil
}

// ApplySignature stores a signature and the new collected weight under one
// lock, enforcing the one-per-(action, signer) invariant.
func (r *InMemoryRepository) ApplySignature(ctx context.Context, sig *Signature, collectedWeight int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[sig.ActionID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range a.Signatures {
		if existing.Signer == sig.Signer {
			return ErrDuplicateSignature
		}
	}
	sigCopy := *sig
	sigCopy.Signature = append([]byte(nil), sig.Signature...)
	a.Signatures = append(a.Signatures, &sigCopy)
	a.CollectedWeight = collectedWeight
	return nil
}

// NextNonce returns the next value of the monotonic nonce sequence.
func (r *InMemoryRepository) NextNonce(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonce++
	return r.nonce, nil
}

// ListPendingExpiredBefore returns pending actions whose deadline is at or
// before the cutoff, oldest first.
func (r *InMemoryRepository) ListPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Action
	for _, id := range r.order {
		a := r.actions[id]
		if a.Status == StatusPending && !a.Deadline.After(cutoff) {
			results = append(results, copyAction(a))
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// CountPending returns the number of pending actions.
func (r *InMemoryRepository) CountPending(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, a := range r.actions {
		if a.Status == StatusPending {
			n++
		}
	}
	return n, nil
}
