package audit

import (
	"context"
	"testing"
)

func TestInMemoryRepository_AppendAssignsMonotonicSeq(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		entry, err := repo.Append(ctx, Record{
			Actor:  "admin-1",
			Action: ActionSignerAdded,
			Digest: "abc",
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if entry.Seq != int64(i) {
			t.Errorf("entry %d: Seq = %d, want %d", i, entry.Seq, i)
		}
		if entry.Outcome != OutcomeSuccess {
			t.Errorf("entry %d: Outcome = %q, want %q", i, entry.Outcome, OutcomeSuccess)
		}
	}

	last, err := repo.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() error = %v", err)
	}
	if last != 3 {
		t.Errorf("LastSeq() = %d, want 3", last)
	}
}

func TestInMemoryRepository_AppendValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Append(ctx, Record{Action: ActionSignerAdded}); err != ErrInvalidActor {
		t.Errorf("Append() without actor error = %v, want ErrInvalidActor", err)
	}
	if _, err := repo.Append(ctx, Record{Actor: "admin-1"}); err != ErrInvalidAction {
		t.Errorf("Append() without action error = %v, want ErrInvalidAction", err)
	}

	// Failed appends must not consume sequence ids.
	last, err := repo.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() error = %v", err)
	}
	if last != 0 {
		t.Errorf("LastSeq() = %d after rejected appends, want 0", last)
	}
}

func TestInMemoryRepository_HashChain(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Append(ctx, Record{Actor: "a", Action: ActionTransactionSubmit})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.PreviousHash != "" {
		t.Errorf("first entry PreviousHash = %q, want empty", first.PreviousHash)
	}

	second, err := repo.Append(ctx, Record{Actor: "b", Action: ActionTransactionSigned})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if second.PreviousHash != ChainHash(first) {
		t.Error("second entry PreviousHash does not match hash of first entry")
	}

	broken, err := repo.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 0 {
		t.Errorf("VerifyChain() = %d, want 0 for intact chain", broken)
	}
}

func TestInMemoryRepository_VerifyChainDetectsTampering(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Append(ctx, Record{Actor: "a", Action: ActionTransactionSigned}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	// Reach into storage to simulate tampering with the middle entry.
	repo.mu.Lock()
	repo.entries[1].Actor = "mallory"
	repo.mu.Unlock()

	broken, err := repo.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if broken != 3 {
		t.Errorf("VerifyChain() = %d, want 3 (first entry after the tampered link)", broken)
	}
}

func TestInMemoryRepository_Range(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := repo.Append(ctx, Record{Actor: "a", Action: ActionTransactionSigned}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := repo.Range(ctx, 2, 4, 0)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Range(2, 4) returned %d entries, want 3", len(entries))
	}
	if entries[0].Seq != 2 || entries[2].Seq != 4 {
		t.Errorf("Range(2, 4) seqs = [%d..%d], want [2..4]", entries[0].Seq, entries[2].Seq)
	}

	limited, err := repo.Range(ctx, 1, 0, 2)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Range(1, 0, limit=2) returned %d entries, want 2", len(limited))
	}

	if _, err := repo.Range(ctx, 4, 2, 0); err != ErrInvalidRange {
		t.Errorf("Range(4, 2) error = %v, want ErrInvalidRange", err)
	}
}
