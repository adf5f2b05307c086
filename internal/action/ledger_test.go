package action

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/emergency"
	"github.com/onnwee/quorumgate/internal/policy"
	"github.com/onnwee/quorumgate/internal/signer"
	"github.com/onnwee/quorumgate/internal/sigverify"
)

const (
	testBaseDelay = time.Hour
	testHorizon   = 30 * 24 * time.Hour
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingDispatcher struct {
	calls   int
	succeed bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, target string, value int64, payload []byte) *DispatchResult {
	d.calls++
	return &DispatchResult{Success: d.succeed, Detail: "recorded", DispatchedAt: time.Now().UTC()}
}

var errStorage = errors.New("storage unavailable")

// faultRepo wraps a Repository and fails a set number of calls per
// operation, simulating storage errors.
type faultRepo struct {
	Repository
	failApply  int
	failInsert int
	failUpdate int
}

func (r *faultRepo) ApplySignature(ctx context.Context, sig *Signature, collectedWeight int64) error {
	if r.failApply > 0 {
		r.failApply--
		return errStorage
	}
	return r.Repository.ApplySignature(ctx, sig, collectedWeight)
}

func (r *faultRepo) Insert(ctx context.Context, a *Action) error {
	if r.failInsert > 0 {
		r.failInsert--
		return errStorage
	}
	return r.Repository.Insert(ctx, a)
}

func (r *faultRepo) Update(ctx context.Context, a *Action) error {
	if r.failUpdate > 0 {
		r.failUpdate--
		return errStorage
	}
	return r.Repository.Update(ctx, a)
}

type testEnv struct {
	ledger     *Ledger
	registry   *signer.Registry
	controller *emergency.Controller
	verifier   *sigverify.HMACVerifier
	dispatcher *recordingDispatcher
	auditRepo  *audit.InMemoryRepository
	repo       *faultRepo
	clock      *fakeClock
}

// newTestEnv wires a full in-memory ledger with signers alice (weight 2),
// bob (1) and carol (1) at threshold 3.
func newTestEnv(t *testing.T, limits UsageLimits) *testEnv {
	t.Helper()
	ctx := context.Background()

	auditRepo := audit.NewInMemoryRepository()
	signerRepo := signer.NewInMemoryRepository(3)
	registry := signer.NewRegistry(signerRepo, auditRepo, signer.Config{
		MinSigners:   1,
		MaxSigners:   16,
		MinThreshold: 1,
		MaxThreshold: 64,
	}, nil)

	verifier := sigverify.NewHMACVerifier()
	for identity, weight := range map[string]int64{"alice": 2, "bob": 1, "carol": 1} {
		if _, err := registry.AddSigner(ctx, "admin", identity, weight); err != nil {
			t.Fatalf("AddSigner(%s): %v", identity, err)
		}
		verifier.SetSecret(identity, []byte("secret-"+identity))
	}

	emergencyRepo := emergency.NewInMemoryRepository()
	controller := emergency.NewController(emergencyRepo, registry, auditRepo, testBaseDelay, nil, nil)

	quorum := policy.NewQuorumEvaluator(registry, controller)
	delay := policy.NewTimeDelayPolicy(controller, testBaseDelay)

	repo := &faultRepo{Repository: NewInMemoryRepository()}
	collector := NewCollector(repo, registry, verifier, auditRepo, "", nil)
	dispatcher := &recordingDispatcher{succeed: true}

	ledger := NewLedger(LedgerOptions{
		Repo:       repo,
		Registry:   registry,
		Quorum:     quorum,
		Delay:      delay,
		Collector:  collector,
		Usage:      NewInMemoryUsageStore(),
		Limits:     limits,
		Dispatcher: dispatcher,
		Audit:      auditRepo,
		DomainTag:  "",
		MaxHorizon: testHorizon,
	}, nil)

	clock := newFakeClock()
	ledger.SetClock(clock.Now)

	return &testEnv{
		ledger:     ledger,
		registry:   registry,
		controller: controller,
		verifier:   verifier,
		dispatcher: dispatcher,
		auditRepo:  auditRepo,
		repo:       repo,
		clock:      clock,
	}
}

func (e *testEnv) submit(t *testing.T, creator string, class policy.Class) *Action {
	t.Helper()
	a, err := e.ledger.Submit(context.Background(), creator, SubmitRequest{
		Target:   "https://vault.example.com/release",
		Value:    500,
		Payload:  []byte(`{"amount":500}`),
		Deadline: e.clock.Now().Add(48 * time.Hour),
		Class:    class,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return a
}

func (e *testEnv) sign(t *testing.T, a *Action, identity string) *Action {
	t.Helper()
	updated, err := e.ledger.Sign(context.Background(), a.ID, identity, e.signatureFor(t, a, identity), SignatureClassStandard)
	if err != nil {
		t.Fatalf("Sign(%s): %v", identity, err)
	}
	return updated
}

func (e *testEnv) signatureFor(t *testing.T, a *Action, identity string) []byte {
	t.Helper()
	digest, err := hex.DecodeString(a.Digest)
	if err != nil {
		t.Fatalf("decode digest: %v", err)
	}
	return e.verifier.Sign(identity, digest)
}

func TestLedger_SubmitValidation(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()
	deadline := env.clock.Now().Add(time.Hour)

	cases := []struct {
		name    string
		creator string
		req     SubmitRequest
		wantErr error
	}{
		{"unknown creator", "mallory", SubmitRequest{Target: "t", Deadline: deadline, Class: policy.ClassStandard}, signer.ErrInvalidSigner},
		{"empty target", "alice", SubmitRequest{Target: "", Deadline: deadline, Class: policy.ClassStandard}, ErrInvalidTarget},
		{"bad class", "alice", SubmitRequest{Target: "t", Deadline: deadline, Class: policy.Class("bogus")}, ErrInvalidClass},
		{"deadline in the past", "alice", SubmitRequest{Target: "t", Deadline: env.clock.Now().Add(-time.Minute), Class: policy.ClassStandard}, ErrInvalidDeadline},
		{"deadline equal to now", "alice", SubmitRequest{Target: "t", Deadline: env.clock.Now(), Class: policy.ClassStandard}, ErrInvalidDeadline},
		{"deadline beyond horizon", "alice", SubmitRequest{Target: "t", Deadline: env.clock.Now().Add(testHorizon + time.Second), Class: policy.ClassStandard}, ErrInvalidDeadline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.ledger.Submit(ctx, tc.creator, tc.req); !errors.Is(err, tc.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Deadline exactly at the horizon boundary is accepted.
	if _, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(testHorizon), Class: policy.ClassStandard,
	}); err != nil {
		t.Errorf("Submit at horizon boundary: %v", err)
	}
}

func TestLedger_SubmitSnapshotsRequiredWeight(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})

	a := env.submit(t, "alice", policy.ClassStandard)
	if a.RequiredWeight != 3 {
		t.Errorf("RequiredWeight = %d, want 3", a.RequiredWeight)
	}
	if a.Status != StatusPending {
		t.Errorf("Status = %s, want pending", a.Status)
	}
	if a.Digest == "" || a.Nonce == "" {
		t.Error("expected digest and nonce to be set")
	}

	critical := env.submit(t, "alice", policy.ClassSecurityCritical)
	if critical.RequiredWeight != 4 {
		t.Errorf("security-critical RequiredWeight = %d, want 4", critical.RequiredWeight)
	}
}

func TestLedger_FullLifecycle(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	a = env.sign(t, a, "alice")
	if a.CollectedWeight != 2 {
		t.Fatalf("CollectedWeight after alice = %d, want 2", a.CollectedWeight)
	}

	// Quorum not yet met.
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, ErrQuorumNotMet) {
		t.Fatalf("Execute before quorum: %v, want ErrQuorumNotMet", err)
	}

	a = env.sign(t, a, "bob")
	if a.CollectedWeight != 3 {
		t.Fatalf("CollectedWeight after bob = %d, want 3", a.CollectedWeight)
	}

	// Quorum met but the delay has not elapsed.
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, ErrDelayNotElapsed) {
		t.Fatalf("Execute before delay: %v, want ErrDelayNotElapsed", err)
	}

	env.clock.Advance(testBaseDelay)
	executed, err := env.ledger.Execute(ctx, a.ID, "alice")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed.Status != StatusExecuted {
		t.Errorf("Status = %s, want executed", executed.Status)
	}
	if executed.DispatchResult == nil || !executed.DispatchResult.Success {
		t.Error("expected successful dispatch result on the record")
	}
	if env.dispatcher.calls != 1 {
		t.Errorf("dispatcher calls = %d, want 1", env.dispatcher.calls)
	}

	// Terminal state rejects further transitions.
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, ErrNotPending) {
		t.Errorf("second Execute: %v, want ErrNotPending", err)
	}
	if _, err := env.ledger.Cancel(ctx, a.ID, "alice", "", false); !errors.Is(err, ErrNotPending) {
		t.Errorf("Cancel after execute: %v, want ErrNotPending", err)
	}
}

func TestLedger_DispatchFailureStillSeals(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	env.dispatcher.succeed = false
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	a = env.sign(t, a, "alice")
	a = env.sign(t, a, "bob")
	env.clock.Advance(testBaseDelay)

	executed, err := env.ledger.Execute(ctx, a.ID, "bob")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if executed.Status != StatusExecuted {
		t.Errorf("Status = %s, want executed despite failed dispatch", executed.Status)
	}
	if executed.DispatchResult == nil || executed.DispatchResult.Success {
		t.Error("expected failed dispatch result on the record")
	}
}

func TestLedger_SignRejections(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	env.sign(t, a, "bob")

	// Duplicate signer.
	if _, err := env.ledger.Sign(ctx, a.ID, "bob", env.signatureFor(t, a, "bob"), SignatureClassStandard); !errors.Is(err, ErrDuplicateSignature) {
		t.Errorf("duplicate Sign: %v, want ErrDuplicateSignature", err)
	}

	// Unknown signer.
	if _, err := env.ledger.Sign(ctx, a.ID, "mallory", []byte("sig"), SignatureClassStandard); !errors.Is(err, signer.ErrInvalidSigner) {
		t.Errorf("unknown signer: %v, want ErrInvalidSigner", err)
	}

	// Wrong signature bytes.
	if _, err := env.ledger.Sign(ctx, a.ID, "carol", []byte("not a mac"), SignatureClassStandard); !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("bad signature: %v, want ErrVerificationFailed", err)
	}

	// Signature by one signer replayed under another identity.
	if _, err := env.ledger.Sign(ctx, a.ID, "carol", env.signatureFor(t, a, "alice"), SignatureClassStandard); !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("replayed signature: %v, want ErrVerificationFailed", err)
	}

	// Rejected signatures never change collected weight.
	got, err := env.ledger.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CollectedWeight != 1 {
		t.Errorf("CollectedWeight = %d, want 1", got.CollectedWeight)
	}

	// A verification failure leaves a failure entry in the audit log.
	entries, err := env.auditRepo.Range(ctx, 1, 0, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	var rejections int
	for _, e := range entries {
		if e.Action == audit.ActionSignatureRejected && e.Outcome == audit.OutcomeFailure {
			rejections++
		}
	}
	if rejections != 2 {
		t.Errorf("signature_rejected failure entries = %d, want 2", rejections)
	}
}

func TestLedger_LazyExpiry(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	env.sign(t, a, "alice")
	env.sign(t, a, "bob")

	env.clock.Advance(72 * time.Hour)

	if _, err := env.ledger.Sign(ctx, a.ID, "carol", env.signatureFor(t, a, "carol"), SignatureClassStandard); !errors.Is(err, ErrExpired) {
		t.Errorf("Sign after deadline: %v, want ErrExpired", err)
	}
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, ErrExpired) {
		t.Errorf("Execute after deadline: %v, want ErrExpired", err)
	}

	// Expiry is persisted, not just reported.
	got, err := env.ledger.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("Status = %s, want expired", got.Status)
	}
}

func TestLedger_ExpireOverdueSweep(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	first := env.submit(t, "alice", policy.ClassStandard)
	second := env.submit(t, "bob", policy.ClassStandard)
	env.clock.Advance(72 * time.Hour)
	fresh, err := env.ledger.Submit(ctx, "carol", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	n, err := env.ledger.ExpireOverdue(ctx, 0)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if n != 2 {
		t.Errorf("expired = %d, want 2", n)
	}

	for _, id := range []string{first.ID, second.ID} {
		got, err := env.ledger.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != StatusExpired {
			t.Errorf("Status = %s, want expired", got.Status)
		}
	}
	got, err := env.ledger.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("fresh action Status = %s, want pending", got.Status)
	}
}

func TestLedger_SweepExpiresDeadlineAtCutoff(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The sweep instant lands exactly on the deadline. Lazy expiry on read
	// treats this as expired, so the sweep must too.
	env.clock.Advance(time.Hour)
	n, err := env.ledger.ExpireOverdue(ctx, 0)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	got, err := env.ledger.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("Status = %s, want expired", got.Status)
	}
}

func TestLedger_SignStorageFailureLeavesNoPartialState(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)

	env.repo.failApply = 1
	if _, err := env.ledger.Sign(ctx, a.ID, "bob", env.signatureFor(t, a, "bob"), SignatureClassStandard); !errors.Is(err, errStorage) {
		t.Fatalf("Sign with failing storage: %v, want storage error", err)
	}

	got, err := env.ledger.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Signatures) != 0 || got.CollectedWeight != 0 {
		t.Fatalf("after failed sign: %d signatures, weight %d; want none stored",
			len(got.Signatures), got.CollectedWeight)
	}

	// Once storage recovers the same signer can sign and their weight counts.
	updated := env.sign(t, a, "bob")
	if updated.CollectedWeight != 1 || len(updated.Signatures) != 1 {
		t.Errorf("after retry: weight %d, %d signatures; want 1 and 1",
			updated.CollectedWeight, len(updated.Signatures))
	}
}

func TestLedger_SubmitStorageFailureReleasesQuota(t *testing.T) {
	env := newTestEnv(t, UsageLimits{MaxActions: 1})
	ctx := context.Background()

	env.repo.failInsert = 1
	if _, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	}); !errors.Is(err, errStorage) {
		t.Fatalf("Submit with failing storage: %v, want storage error", err)
	}

	// The failed submission handed its quota slot back.
	env.submit(t, "alice", policy.ClassStandard)

	if _, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Submit over daily limit: %v, want ErrRateLimited", err)
	}
}

func TestLedger_ExecuteSealFailureDoesNotDispatch(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	a = env.sign(t, a, "alice")
	a = env.sign(t, a, "bob")
	env.clock.Advance(testBaseDelay + time.Minute)

	env.repo.failUpdate = 1
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, errStorage) {
		t.Fatalf("Execute with failing storage: %v, want storage error", err)
	}
	if env.dispatcher.calls != 0 {
		t.Fatalf("dispatched %d times before sealing, want 0", env.dispatcher.calls)
	}
	got, err := env.ledger.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("Status after failed seal = %s, want pending", got.Status)
	}

	executed, err := env.ledger.Execute(ctx, a.ID, "alice")
	if err != nil {
		t.Fatalf("Execute retry: %v", err)
	}
	if env.dispatcher.calls != 1 {
		t.Errorf("dispatch calls = %d, want exactly 1", env.dispatcher.calls)
	}
	if executed.Status != StatusExecuted || executed.DispatchResult == nil {
		t.Errorf("retry result = %s with result %v, want executed with a dispatch result",
			executed.Status, executed.DispatchResult)
	}
}

func TestLedger_Cancel(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)

	if _, err := env.ledger.Cancel(ctx, a.ID, "bob", "", false); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Cancel by non-creator: %v, want ErrUnauthorized", err)
	}

	cancelled, err := env.ledger.Cancel(ctx, a.ID, "alice", "no longer needed", false)
	if err != nil {
		t.Fatalf("Cancel by creator: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", cancelled.Status)
	}

	// Administrators may cancel transactions they did not create.
	b := env.submit(t, "alice", policy.ClassStandard)
	if _, err := env.ledger.Cancel(ctx, b.ID, "operator", "", true); err != nil {
		t.Errorf("Cancel by admin: %v", err)
	}
}

func TestLedger_EmergencyLevelFiveShortCircuit(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	if _, err := env.controller.Activate(ctx, "guardian", 5, "key compromise"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// Level 5 drops the requirement to a single unit of weight with no delay.
	env.sign(t, a, "carol")
	executed, err := env.ledger.Execute(ctx, a.ID, "carol")
	if err != nil {
		t.Fatalf("Execute under level 5: %v", err)
	}
	if executed.Status != StatusExecuted {
		t.Errorf("Status = %s, want executed", executed.Status)
	}
}

func TestLedger_EmergencyDeactivationRestoresRequirements(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	env.sign(t, a, "carol")

	if _, err := env.controller.Activate(ctx, "guardian", 5, "drill"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := env.controller.Deactivate(ctx, "guardian"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	// Back to Normal: one unit of weight no longer executes.
	if _, err := env.ledger.Execute(ctx, a.ID, "carol"); !errors.Is(err, ErrQuorumNotMet) {
		t.Errorf("Execute after deactivation: %v, want ErrQuorumNotMet", err)
	}
}

func TestLedger_ThresholdIncreaseBlocksPending(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	env.sign(t, a, "alice")
	env.sign(t, a, "bob")
	env.clock.Advance(testBaseDelay)

	if err := env.registry.UpdateThreshold(ctx, "admin", 4); err != nil {
		t.Fatalf("UpdateThreshold: %v", err)
	}
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); !errors.Is(err, ErrQuorumNotMet) {
		t.Fatalf("Execute after increase: %v, want ErrQuorumNotMet", err)
	}

	if err := env.registry.UpdateThreshold(ctx, "admin", 3); err != nil {
		t.Fatalf("UpdateThreshold: %v", err)
	}
	if _, err := env.ledger.Execute(ctx, a.ID, "alice"); err != nil {
		t.Errorf("Execute after restore: %v", err)
	}
}

func TestLedger_DailySubmissionLimits(t *testing.T) {
	env := newTestEnv(t, UsageLimits{MaxActions: 2})
	ctx := context.Background()

	env.submit(t, "alice", policy.ClassStandard)
	env.submit(t, "alice", policy.ClassStandard)
	if _, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third submit: %v, want ErrRateLimited", err)
	}

	// Other creators are unaffected.
	if _, err := env.ledger.Submit(ctx, "bob", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	}); err != nil {
		t.Errorf("bob submit: %v", err)
	}

	// The counter resets at the UTC day boundary.
	env.clock.Advance(24 * time.Hour)
	if _, err := env.ledger.Submit(ctx, "alice", SubmitRequest{
		Target: "t", Deadline: env.clock.Now().Add(time.Hour), Class: policy.ClassStandard,
	}); err != nil {
		t.Errorf("submit next day: %v", err)
	}
}

func TestLedger_SignerBookkeepingAfterAcceptedSignature(t *testing.T) {
	env := newTestEnv(t, UsageLimits{})
	ctx := context.Background()

	a := env.submit(t, "alice", policy.ClassStandard)
	env.sign(t, a, "bob")

	s, err := env.registry.GetActive(ctx, "bob")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if s.SignatureCount != 1 {
		t.Errorf("SignatureCount = %d, want 1", s.SignatureCount)
	}
	if s.LastUsedAt == nil {
		t.Error("expected LastUsedAt to be set")
	}
}
