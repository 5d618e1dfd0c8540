package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"parkhive-bend/apperr"
	"parkhive-bend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore mimics the conditional-write semantics of the mongo DAO.
type memStore struct {
	mu   sync.Mutex
	recs map[primitive.ObjectID]*models.EscrowRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[primitive.ObjectID]*models.EscrowRecord)}
}

func (s *memStore) Insert(_ context.Context, rec models.EscrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *memStore) FindByID(_ context.Context, id primitive.ObjectID) (models.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return models.EscrowRecord{}, errors.New("no documents in result")
	}
	return *rec, nil
}

func (s *memStore) AppendAudit(_ context.Context, id primitive.ObjectID, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return errors.New("no documents in result")
	}
	rec.AuditLog = append(rec.AuditLog, entry)
	return nil
}

func (s *memStore) SetPaymentRef(_ context.Context, id primitive.ObjectID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return errors.New("no documents in result")
	}
	rec.PaymentRef = ref
	return nil
}

func (s *memStore) ApplyRelease(_ context.Context, id primitive.ObjectID, amount float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || (rec.Status != models.EscrowHeld && rec.Status != models.EscrowPartiallyRefunded) {
		return false, nil
	}
	rec.ReleasedAmount += amount
	rec.Status = models.EscrowReleased
	return true, nil
}

func (s *memStore) ApplyRefund(_ context.Context, id primitive.ObjectID, amount float64, newStatus, opKey, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || (rec.Status != models.EscrowHeld && rec.Status != models.EscrowPartiallyRefunded) {
		return false, nil
	}
	rec.RefundedAmount += amount
	rec.Status = newStatus
	if rec.RefundRefs == nil {
		rec.RefundRefs = make(map[string]string)
	}
	rec.RefundRefs[opKey] = externalID
	return true, nil
}

func (s *memStore) Remove(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *memStore) get(t *testing.T, id primitive.ObjectID) models.EscrowRecord {
	t.Helper()
	rec, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	return rec
}

type noDisputes struct{}

func (noDisputes) FindOpenByEscrowID(context.Context, primitive.ObjectID) ([]models.Dispute, error) {
	return nil, nil
}

type openDispute struct{}

func (openDispute) FindOpenByEscrowID(_ context.Context, id primitive.ObjectID) ([]models.Dispute, error) {
	return []models.Dispute{{ID: primitive.NewObjectID(), EscrowID: id, Status: models.DisputeOpen}}, nil
}

// scriptedExec returns queued errors, then succeeds with deterministic ids.
type scriptedExec struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	refund int
}

func (e *scriptedExec) ExecuteRefund(_ context.Context, _ string, _ float64, _, key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		if err != nil {
			return "", err
		}
	}
	e.refund++
	return "RF-" + key, nil
}

func held(t *testing.T, l *Ledger, amount float64) models.EscrowRecord {
	t.Helper()
	rec, err := l.Hold(context.Background(), primitive.NewObjectID(), amount, "USD", "tester")
	require.NoError(t, err)
	require.NoError(t, l.AttachAuthorization(context.Background(), rec.ID, "CAP-1", "tester"))
	return rec
}

func TestHoldRejectsNonPositiveAmount(t *testing.T) {
	l := NewLedger(newMemStore(), noDisputes{}, &scriptedExec{})
	_, err := l.Hold(context.Background(), primitive.NewObjectID(), 0, "USD", "tester")
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestReleaseMovesFullAmount(t *testing.T) {
	store := newMemStore()
	l := NewLedger(store, noDisputes{}, &scriptedExec{})
	rec := held(t, l, 120)

	require.NoError(t, l.Release(context.Background(), rec.ID, "owner"))

	got := store.get(t, rec.ID)
	assert.Equal(t, models.EscrowReleased, got.Status)
	assert.Equal(t, 120.0, got.ReleasedAmount)
	assert.Equal(t, 0.0, got.Remaining())

	// releasing again is a no-op
	require.NoError(t, l.Release(context.Background(), rec.ID, "owner"))
	assert.Equal(t, 120.0, store.get(t, rec.ID).ReleasedAmount)
}

func TestReleaseBlockedByOpenDispute(t *testing.T) {
	store := newMemStore()
	l := NewLedger(store, openDispute{}, &scriptedExec{})
	rec := held(t, l, 50)

	err := l.Release(context.Background(), rec.ID, "owner")
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, models.EscrowHeld, store.get(t, rec.ID).Status)
}

// fixedDisputes always reports the same open dispute.
type fixedDisputes struct {
	disputeID primitive.ObjectID
}

func (r fixedDisputes) FindOpenByEscrowID(_ context.Context, id primitive.ObjectID) ([]models.Dispute, error) {
	return []models.Dispute{{ID: r.disputeID, EscrowID: id, Status: models.DisputeOpen}}, nil
}

func TestReleaseForDisputeSkipsResolvingDispute(t *testing.T) {
	store := newMemStore()
	disputeID := primitive.NewObjectID()
	l := NewLedger(store, fixedDisputes{disputeID: disputeID}, &scriptedExec{})
	rec := held(t, l, 50)

	// the resolving dispute is still open while its funds move; plain
	// Release refuses, the dispute-scoped release goes through
	err := l.Release(context.Background(), rec.ID, "admin")
	assert.True(t, apperr.Is(err, apperr.InvalidState))

	require.NoError(t, l.ReleaseForDispute(context.Background(), rec.ID, "admin", disputeID))

	got := store.get(t, rec.ID)
	assert.Equal(t, models.EscrowReleased, got.Status)
	assert.Equal(t, 50.0, got.ReleasedAmount)
}

func TestReleaseForDisputeStillBlockedByOtherDispute(t *testing.T) {
	store := newMemStore()
	l := NewLedger(store, fixedDisputes{disputeID: primitive.NewObjectID()}, &scriptedExec{})
	rec := held(t, l, 50)

	err := l.ReleaseForDispute(context.Background(), rec.ID, "admin", primitive.NewObjectID())
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, models.EscrowHeld, store.get(t, rec.ID).Status)
}

func TestPartialRefundKeepsRemainderHeld(t *testing.T) {
	store := newMemStore()
	exec := &scriptedExec{}
	l := NewLedger(store, noDisputes{}, exec)
	rec := held(t, l, 100)

	require.NoError(t, l.Refund(context.Background(), rec.ID, 40, "admin", "op-1", "op-1:1"))

	got := store.get(t, rec.ID)
	assert.Equal(t, models.EscrowPartiallyRefunded, got.Status)
	assert.Equal(t, 40.0, got.RefundedAmount)
	assert.Equal(t, 60.0, got.Remaining())
	assert.Equal(t, "RF-op-1:1", got.RefundRefs["op-1"])

	// a second refund drains the record
	require.NoError(t, l.Refund(context.Background(), rec.ID, 60, "admin", "op-2", "op-2:1"))
	got = store.get(t, rec.ID)
	assert.Equal(t, models.EscrowRefunded, got.Status)
	assert.Equal(t, 0.0, got.Remaining())
}

func TestReleaseAfterPartialRefundMovesRemainder(t *testing.T) {
	store := newMemStore()
	l := NewLedger(store, noDisputes{}, &scriptedExec{})
	rec := held(t, l, 100)

	require.NoError(t, l.Refund(context.Background(), rec.ID, 30, "admin", "op-1", "op-1:1"))
	require.NoError(t, l.Release(context.Background(), rec.ID, "system"))

	got := store.get(t, rec.ID)
	assert.Equal(t, models.EscrowReleased, got.Status)
	assert.Equal(t, 70.0, got.ReleasedAmount)
	assert.Equal(t, 30.0, got.RefundedAmount)
	assert.Equal(t, 0.0, got.Remaining())
}

func TestRefundIdempotentUnderOperationKey(t *testing.T) {
	store := newMemStore()
	exec := &scriptedExec{}
	l := NewLedger(store, noDisputes{}, exec)
	rec := held(t, l, 100)

	require.NoError(t, l.Refund(context.Background(), rec.ID, 100, "admin", "op-1", "op-1:1"))
	require.NoError(t, l.Refund(context.Background(), rec.ID, 100, "admin", "op-1", "op-1:2"))

	assert.Equal(t, 1, exec.refund)
	assert.Equal(t, 100.0, store.get(t, rec.ID).RefundedAmount)
}

func TestRefundTransientThenSuccessAppliesOnce(t *testing.T) {
	store := newMemStore()
	exec := &scriptedExec{errs: []error{apperr.New(apperr.PaymentProcessor, "gateway timeout")}}
	l := NewLedger(store, noDisputes{}, exec)
	rec := held(t, l, 80)

	err := l.Refund(context.Background(), rec.ID, 80, "admin", "op-1", "op-1:1")
	require.True(t, apperr.Is(err, apperr.PaymentProcessor))

	got := store.get(t, rec.ID)
	assert.Equal(t, models.EscrowHeld, got.Status)
	assert.Equal(t, 0.0, got.RefundedAmount)

	// the failed attempt left request + failure entries in the audit log
	var failed bool
	for _, e := range got.AuditLog {
		if e.Action == models.AuditRefundFailed {
			failed = true
		}
	}
	assert.True(t, failed)

	// retry with a fresh attempt key applies exactly one refund
	require.NoError(t, l.Refund(context.Background(), rec.ID, 80, "admin", "op-1", "op-1:2"))
	got = store.get(t, rec.ID)
	assert.Equal(t, models.EscrowRefunded, got.Status)
	assert.Equal(t, 80.0, got.RefundedAmount)
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, 1, exec.refund)
}

func TestRefundOverRemainingRejected(t *testing.T) {
	store := newMemStore()
	exec := &scriptedExec{}
	l := NewLedger(store, noDisputes{}, exec)
	rec := held(t, l, 100)

	require.NoError(t, l.Refund(context.Background(), rec.ID, 70, "admin", "op-1", "op-1:1"))

	err := l.Refund(context.Background(), rec.ID, 50, "admin", "op-2", "op-2:1")
	assert.True(t, apperr.Is(err, apperr.Invariant))
	assert.Equal(t, 1, exec.refund)
}

func TestRefundAfterReleaseRejected(t *testing.T) {
	store := newMemStore()
	l := NewLedger(store, noDisputes{}, &scriptedExec{})
	rec := held(t, l, 100)

	require.NoError(t, l.Release(context.Background(), rec.ID, "owner"))

	err := l.Refund(context.Background(), rec.ID, 100, "admin", "op-1", "op-1:1")
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestConservationUnderConcurrentRefunds(t *testing.T) {
	store := newMemStore()
	exec := &scriptedExec{}
	l := NewLedger(store, noDisputes{}, exec)
	rec := held(t, l, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// all goroutines race the same logical operation
			opKey := "op-concurrent"
			_ = l.Refund(context.Background(), rec.ID, 100, "admin", opKey, opKey+":1")
		}()
	}
	wg.Wait()

	got := store.get(t, rec.ID)
	assert.Equal(t, 1, exec.refund)
	assert.Equal(t, 100.0, got.RefundedAmount)
	assert.LessOrEqual(t, got.ReleasedAmount+got.RefundedAmount, got.AmountHeld)
}
