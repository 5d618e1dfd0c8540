package dispute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/events"
	"parkhive-bend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memDisputes struct {
	mu   sync.Mutex
	recs map[primitive.ObjectID]*models.Dispute
}

func newMemDisputes() *memDisputes {
	return &memDisputes{recs: make(map[primitive.ObjectID]*models.Dispute)}
}

func (s *memDisputes) Insert(_ context.Context, d models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.recs[d.ID] = &cp
	return nil
}

func (s *memDisputes) FindByID(_ context.Context, id primitive.ObjectID) (models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok {
		return models.Dispute{}, errors.New("no documents in result")
	}
	return *d, nil
}

func (s *memDisputes) AppendTimeline(_ context.Context, id primitive.ObjectID, entry models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok {
		return errors.New("no documents in result")
	}
	d.Timeline = append(d.Timeline, entry)
	return nil
}

func (s *memDisputes) IncAttempts(_ context.Context, id primitive.ObjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok {
		return 0, errors.New("no documents in result")
	}
	d.ResolutionAttempts++
	return d.ResolutionAttempts, nil
}

func (s *memDisputes) MarkResolved(_ context.Context, id primitive.ObjectID, resolution models.Resolution) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.recs[id]
	if !ok || d.Status != models.DisputeOpen {
		return false, nil
	}
	d.Status = models.DisputeResolved
	d.Resolution = &resolution
	return true, nil
}

func (s *memDisputes) get(t *testing.T, id primitive.ObjectID) models.Dispute {
	t.Helper()
	d, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

type bookingReader struct {
	bookings map[primitive.ObjectID]models.Booking
}

func (r bookingReader) FindByID(_ context.Context, id primitive.ObjectID) (models.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return models.Booking{}, errors.New("no documents in result")
	}
	return b, nil
}

type escrowReader struct {
	mu   sync.Mutex
	recs map[primitive.ObjectID]*models.EscrowRecord
}

func (r *escrowReader) FindByID(_ context.Context, id primitive.ObjectID) (models.EscrowRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return models.EscrowRecord{}, errors.New("no documents in result")
	}
	return *rec, nil
}

// fakeLedger applies movements to the escrowReader's records, so full
// refunds become visible to the workflow's post-resolution check.
type fakeLedger struct {
	escrows  *escrowReader
	failNext error
	releases int
	refunds  int
}

func (l *fakeLedger) ReleaseForDispute(_ context.Context, id primitive.ObjectID, _ string, _ primitive.ObjectID) error {
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}
	l.escrows.mu.Lock()
	defer l.escrows.mu.Unlock()
	rec := l.escrows.recs[id]
	rec.ReleasedAmount = rec.AmountHeld
	rec.Status = models.EscrowReleased
	l.releases++
	return nil
}

func (l *fakeLedger) Refund(_ context.Context, id primitive.ObjectID, amount float64, _, _, _ string) error {
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}
	l.escrows.mu.Lock()
	defer l.escrows.mu.Unlock()
	rec := l.escrows.recs[id]
	rec.RefundedAmount += amount
	if rec.Remaining() <= 1e-9 {
		rec.Status = models.EscrowRefunded
	} else {
		rec.Status = models.EscrowPartiallyRefunded
	}
	l.refunds++
	return nil
}

type fakeCanceller struct {
	cancelled []primitive.ObjectID
}

func (c *fakeCanceller) CancelFromDispute(_ context.Context, bookingID primitive.ObjectID, _ string) error {
	c.cancelled = append(c.cancelled, bookingID)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	records []interface{}
}

func (a *memAudit) Insert(_ context.Context, _ string, obj interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, obj)
	return nil
}

type fixture struct {
	workflow  *Workflow
	disputes  *memDisputes
	escrows   *escrowReader
	ledger    *fakeLedger
	canceller *fakeCanceller
	audit     *memAudit
	booking   models.Booking
	requester primitive.ObjectID
	owner     primitive.ObjectID
	admin     primitive.ObjectID
}

func newFixture(t *testing.T, bookingStatus, escrowStatus string) *fixture {
	t.Helper()
	f := &fixture{
		disputes:  newMemDisputes(),
		canceller: &fakeCanceller{},
		audit:     &memAudit{},
		requester: primitive.NewObjectID(),
		owner:     primitive.NewObjectID(),
		admin:     primitive.NewObjectID(),
	}

	escrowID := primitive.NewObjectID()
	f.booking = models.Booking{
		ID:          primitive.NewObjectID(),
		ResourceID:  "spot-1",
		RequesterID: f.requester,
		OwnerID:     f.owner,
		StartTime:   time.Date(2021, 6, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2021, 6, 1, 17, 0, 0, 0, time.UTC),
		TotalPrice:  100,
		Currency:    "USD",
		Status:      bookingStatus,
		EscrowID:    escrowID,
	}
	f.escrows = &escrowReader{recs: map[primitive.ObjectID]*models.EscrowRecord{
		escrowID: {
			ID:         escrowID,
			BookingID:  f.booking.ID,
			PaymentRef: "CAP-1",
			AmountHeld: 100,
			Currency:   "USD",
			Status:     escrowStatus,
		},
	}}
	f.ledger = &fakeLedger{escrows: f.escrows}

	f.workflow = NewWorkflow(
		f.disputes,
		bookingReader{bookings: map[primitive.ObjectID]models.Booking{f.booking.ID: f.booking}},
		f.escrows,
		f.ledger,
		f.canceller,
		f.audit,
		events.NewBus(),
	)
	return f
}

func (f *fixture) open(t *testing.T, amount float64) models.Dispute {
	t.Helper()
	d, err := f.workflow.Open(context.Background(), f.requester, models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: amount,
		Details:          "space was occupied",
	})
	require.NoError(t, err)
	return d
}

func TestOpenDispute(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)

	d := f.open(t, 60)

	assert.Equal(t, models.DisputeOpen, d.Status)
	assert.Equal(t, f.booking.EscrowID, d.EscrowID)
	require.Len(t, d.Timeline, 1)
	assert.Equal(t, models.DisputeOpen, d.Timeline[0].Status)
}

func TestOpenDisputeOnlyParties(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)

	_, err := f.workflow.Open(context.Background(), primitive.NewObjectID(), models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: 60,
	})
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

func TestOpenDisputeRequiresHeldEscrow(t *testing.T) {
	f := newFixture(t, models.BookingCompleted, models.EscrowReleased)

	_, err := f.workflow.Open(context.Background(), f.requester, models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: 60,
	})
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestOpenDisputeRejectsPendingBooking(t *testing.T) {
	f := newFixture(t, models.BookingPending, models.EscrowHeld)

	_, err := f.workflow.Open(context.Background(), f.requester, models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: 60,
	})
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestOpenDisputeAmountBounds(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)

	_, err := f.workflow.Open(context.Background(), f.requester, models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: 0,
	})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = f.workflow.Open(context.Background(), f.requester, models.OpenDisputeReq{
		BookingID:        f.booking.ID.Hex(),
		AmountInQuestion: 150,
	})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestResolveApproveReleases(t *testing.T) {
	f := newFixture(t, models.BookingCompleted, models.EscrowHeld)
	d := f.open(t, 60)

	resolved, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionApprove,
		Notes:    "service was delivered",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DisputeResolved, resolved.Status)
	assert.Equal(t, 0.0, resolved.Resolution.RefundAmount)
	assert.Equal(t, 1, f.ledger.releases)
	assert.Empty(t, f.canceller.cancelled)
	assert.Len(t, f.audit.records, 1)
}

func TestResolveFullRefundCancelsBooking(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)
	d := f.open(t, 100)

	resolved, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionRefund,
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, resolved.Resolution.RefundAmount)
	assert.Equal(t, 1, f.ledger.refunds)
	assert.Equal(t, []primitive.ObjectID{f.booking.ID}, f.canceller.cancelled)
}

func TestResolvePartialRefundKeepsBooking(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)
	d := f.open(t, 80)

	resolved, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision:     models.DecisionPartialRefund,
		RefundAmount: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 30.0, resolved.Resolution.RefundAmount)
	assert.Empty(t, f.canceller.cancelled)

	rec, err := f.escrows.FindByID(context.Background(), f.booking.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowPartiallyRefunded, rec.Status)
	assert.Equal(t, 70.0, rec.Remaining())
}

func TestResolvePartialRefundBounds(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)
	d := f.open(t, 80)

	for _, amount := range []float64{0, 80, 120} {
		_, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
			Decision:     models.DecisionPartialRefund,
			RefundAmount: amount,
		})
		assert.True(t, apperr.Is(err, apperr.Validation), "amount %v", amount)
	}
}

func TestResolveTwiceRejected(t *testing.T) {
	f := newFixture(t, models.BookingCompleted, models.EscrowHeld)
	d := f.open(t, 60)

	_, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionApprove,
	})
	require.NoError(t, err)

	_, err = f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionRefund,
	})
	assert.True(t, apperr.Is(err, apperr.InvalidState))
	assert.Equal(t, 0, f.ledger.refunds)
}

func TestResolveRefundFailureLeavesDisputeOpen(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)
	d := f.open(t, 100)

	f.ledger.failNext = apperr.New(apperr.PaymentProcessor, "gateway down")

	_, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionRefund,
	})
	require.True(t, apperr.Is(err, apperr.PaymentProcessor))

	got := f.disputes.get(t, d.ID)
	assert.Equal(t, models.DisputeOpen, got.Status)
	assert.Equal(t, 1, got.ResolutionAttempts)
	// the failed attempt landed in the timeline
	require.Len(t, got.Timeline, 2)
	assert.Contains(t, got.Timeline[1].Detail, "failed")

	// the retry uses a fresh attempt counter and succeeds
	resolved, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: models.DecisionRefund,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeResolved, resolved.Status)
	assert.Equal(t, 2, resolved.ResolutionAttempts)
	assert.Equal(t, 1, f.ledger.refunds)
}

func TestResolveUnknownDecisionRejected(t *testing.T) {
	f := newFixture(t, models.BookingConfirmed, models.EscrowHeld)
	d := f.open(t, 60)

	_, err := f.workflow.Resolve(context.Background(), d.ID, f.admin, models.ResolveDisputeReq{
		Decision: "split_the_difference",
	})
	assert.True(t, apperr.Is(err, apperr.Validation))
}
