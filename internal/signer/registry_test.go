package signer

import (
	"context"
	"testing"

	"github.com/onnwee/quorumgate/internal/audit"
)

func testConfig() Config {
	return Config{
		MinSigners:   2,
		MaxSigners:   20,
		MinThreshold: 1,
		MaxThreshold: 1000,
	}
}

// newTestRegistry builds a registry with signers A(2), B(1), C(1) and
// threshold 3, matching the reference scenario used across the engine tests.
func newTestRegistry(t *testing.T) (*Registry, *audit.InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository(3)
	auditRepo := audit.NewInMemoryRepository()
	reg := NewRegistry(repo, auditRepo, testConfig(), nil)

	ctx := context.Background()
	for _, s := range []struct {
		identity string
		weight   int64
	}{
		{"signer-a", 2},
		{"signer-b", 1},
		{"signer-c", 1},
	} {
		if _, err := reg.AddSigner(ctx, "admin-1", s.identity, s.weight); err != nil {
			t.Fatalf("AddSigner(%s) error = %v", s.identity, err)
		}
	}
	return reg, auditRepo
}

func TestRegistry_AddSigner(t *testing.T) {
	reg, auditRepo := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.AddSigner(ctx, "admin-1", "signer-d", 5)
	if err != nil {
		t.Fatalf("AddSigner() error = %v", err)
	}
	if s.Weight != 5 || !s.Active {
		t.Errorf("AddSigner() = weight %d active %t, want weight 5 active true", s.Weight, s.Active)
	}

	// Duplicate active identity is rejected.
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-a", 1); err != ErrSignerExists {
		t.Errorf("AddSigner(duplicate) error = %v, want ErrSignerExists", err)
	}

	// Weight bounds.
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-e", 0); err != ErrInvalidWeight {
		t.Errorf("AddSigner(weight 0) error = %v, want ErrInvalidWeight", err)
	}
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-e", MaxWeight+1); err != ErrInvalidWeight {
		t.Errorf("AddSigner(weight %d) error = %v, want ErrInvalidWeight", MaxWeight+1, err)
	}

	// One audit entry per successful mutation: 3 seed + 1 here.
	last, err := auditRepo.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() error = %v", err)
	}
	if last != 4 {
		t.Errorf("audit entries = %d, want 4", last)
	}
}

func TestRegistry_AddSignerRegistryFull(t *testing.T) {
	repo := NewInMemoryRepository(1)
	reg := NewRegistry(repo, audit.NewInMemoryRepository(), Config{
		MinSigners: 2, MaxSigners: 2, MinThreshold: 1, MaxThreshold: 10,
	}, nil)
	ctx := context.Background()

	if _, err := reg.AddSigner(ctx, "admin-1", "signer-a", 1); err != nil {
		t.Fatalf("AddSigner() error = %v", err)
	}
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-b", 1); err != nil {
		t.Fatalf("AddSigner() error = %v", err)
	}
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-c", 1); err != ErrRegistryFull {
		t.Errorf("AddSigner(over capacity) error = %v, want ErrRegistryFull", err)
	}
}

func TestRegistry_RemoveSignerThresholdUnreachable(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	// A(2), B(1), C(1), threshold 3. Removing C leaves 3 which still
	// reaches the threshold; removing B after that would leave 2 < 3.
	if err := reg.RemoveSigner(ctx, "admin-1", "signer-c"); err != nil {
		t.Fatalf("RemoveSigner(signer-c) error = %v", err)
	}
	if err := reg.RemoveSigner(ctx, "admin-1", "signer-b"); err != ErrThresholdUnreachable {
		t.Errorf("RemoveSigner(signer-b) error = %v, want ErrThresholdUnreachable", err)
	}

	// B must still be active after the rejected removal.
	if _, err := reg.GetActive(ctx, "signer-b"); err != nil {
		t.Errorf("GetActive(signer-b) after rejected removal error = %v", err)
	}
}

func TestRegistry_RemoveSignerMinimumCount(t *testing.T) {
	repo := NewInMemoryRepository(1)
	reg := NewRegistry(repo, audit.NewInMemoryRepository(), testConfig(), nil)
	ctx := context.Background()

	if _, err := reg.AddSigner(ctx, "admin-1", "signer-a", 2); err != nil {
		t.Fatalf("AddSigner() error = %v", err)
	}
	if _, err := reg.AddSigner(ctx, "admin-1", "signer-b", 2); err != nil {
		t.Fatalf("AddSigner() error = %v", err)
	}

	if err := reg.RemoveSigner(ctx, "admin-1", "signer-b"); err != ErrMinSignerCount {
		t.Errorf("RemoveSigner(at minimum) error = %v, want ErrMinSignerCount", err)
	}
}

func TestRegistry_RemoveUnknownSigner(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if err := reg.RemoveSigner(context.Background(), "admin-1", "nobody"); err != ErrInvalidSigner {
		t.Errorf("RemoveSigner(unknown) error = %v, want ErrInvalidSigner", err)
	}
}

func TestRegistry_UpdateThreshold(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	// Sum of active weights is 4.
	if err := reg.UpdateThreshold(ctx, "admin-1", 4); err != nil {
		t.Fatalf("UpdateThreshold(4) error = %v", err)
	}
	got, err := reg.Threshold(ctx)
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}
	if got != 4 {
		t.Errorf("Threshold() = %d, want 4", got)
	}

	if err := reg.UpdateThreshold(ctx, "admin-1", 5); err != ErrThresholdUnreachable {
		t.Errorf("UpdateThreshold(5) error = %v, want ErrThresholdUnreachable", err)
	}
	if err := reg.UpdateThreshold(ctx, "admin-1", 0); err != ErrInvalidThreshold {
		t.Errorf("UpdateThreshold(0) error = %v, want ErrInvalidThreshold", err)
	}
	if err := reg.UpdateThreshold(ctx, "admin-1", 1001); err != ErrInvalidThreshold {
		t.Errorf("UpdateThreshold(1001) error = %v, want ErrInvalidThreshold", err)
	}

	// Rejected updates leave the threshold untouched.
	got, err = reg.Threshold(ctx)
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}
	if got != 4 {
		t.Errorf("Threshold() after rejected updates = %d, want 4", got)
	}
}

func TestRegistry_ReenrollRemovedSigner(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.RemoveSigner(ctx, "admin-1", "signer-c"); err != nil {
		t.Fatalf("RemoveSigner() error = %v", err)
	}
	s, err := reg.AddSigner(ctx, "admin-1", "signer-c", 3)
	if err != nil {
		t.Fatalf("AddSigner(re-enroll) error = %v", err)
	}
	if s.Weight != 3 || !s.Active {
		t.Errorf("re-enrolled signer = weight %d active %t, want weight 3 active true", s.Weight, s.Active)
	}
}

func TestRegistry_RecordSignature(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.RecordSignature(ctx, "signer-a", "hardware"); err != nil {
		t.Fatalf("RecordSignature() error = %v", err)
	}
	s, err := reg.GetActive(ctx, "signer-a")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if s.SignatureCount != 1 {
		t.Errorf("SignatureCount = %d, want 1", s.SignatureCount)
	}
	if s.LastUsedAt == nil {
		t.Error("LastUsedAt not set after RecordSignature")
	}
	if s.TrustScore != ClassMultiplier["hardware"] {
		t.Errorf("TrustScore = %f, want %f", s.TrustScore, ClassMultiplier["hardware"])
	}

	if err := reg.RecordSignature(ctx, "nobody", "standard"); err != ErrInvalidSigner {
		t.Errorf("RecordSignature(unknown) error = %v, want ErrInvalidSigner", err)
	}
}
