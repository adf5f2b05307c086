package signer

import (
	"context"
	"sort"
	"sync"
)

// Repository defines persistence for signers and the registry threshold.
type Repository interface {
	// Insert stores a new signer record.
	Insert(ctx context.Context, s *Signer) error

	// Get retrieves a signer by identity, active or not.
	// Returns ErrInvalidSigner if the identity is unknown.
	Get(ctx context.Context, identity string) (*Signer, error)

	// Update replaces the stored record for the signer's identity.
	Update(ctx context.Context, s *Signer) error

	// ListActive returns all active signers ordered by identity.
	ListActive(ctx context.Context) ([]*Signer, error)

	// Threshold returns the currently configured quorum threshold.
	Threshold(ctx context.Context) (int64, error)

	// SetThreshold stores a new quorum threshold.
	SetThreshold(ctx context.Context, threshold int64) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	signers   map[string]*Signer
	threshold int64
}

// NewInMemoryRepository creates a new in-memory signer repository with the
// given initial threshold.
func NewInMemoryRepository(threshold int64) *InMemoryRepository {
	return &InMemoryRepository{
		signers:   make(map[string]*Signer),
		threshold: threshold,
	}
}

// Insert stores a new signer record.
func (r *InMemoryRepository) Insert(ctx context.Context, s *Signer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	signerCopy := *s
	r.signers[s.Identity] = &signerCopy
	return nil
}

// Get retrieves a signer by identity.
func (r *InMemoryRepository) Get(ctx context.Context, identity string) (*Signer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.signers[identity]
	if !ok {
		return nil, ErrInvalidSigner
	}
	signerCopy := *s
	return &signerCopy, nil
}

// Update replaces the stored record for the signer's identity.
func (r *InMemoryRepository) Update(ctx context.Context, s *Signer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signers[s.Identity]; !ok {
		return ErrInvalidSigner
	}
	signerCopy := *s
	r.signers[s.Identity] = &signerCopy
	return nil
}

// ListActive returns all active signers ordered by identity.
func (r *InMemoryRepository) ListActive(ctx context.Context) ([]*Signer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Signer
	for _, s := range r.signers {
		if s.Active {
			signerCopy := *s
			results = append(results, &signerCopy)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Identity < results[j].Identity })
	return results, nil
}

// Threshold returns the currently configured quorum threshold.
func (r *InMemoryRepository) Threshold(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold, nil
}

// SetThreshold stores a new quorum threshold.
func (r *InMemoryRepository) SetThreshold(ctx context.Context, threshold int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = threshold
	return nil
}
