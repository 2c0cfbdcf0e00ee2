package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/domain/booking"
	apperrors "localmart/pkg/errors"
)

// memoryBookingRepo mirrors the Postgres repository's conditional-update
// semantics in memory, including the stale-state conflict.
type memoryBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]booking.Booking
}

func newMemoryBookingRepo() *memoryBookingRepo {
	return &memoryBookingRepo{bookings: make(map[uuid.UUID]booking.Booking)}
}

func (r *memoryBookingRepo) Create(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bookings[b.ID]; exists {
		return apperrors.ErrAlreadyExists
	}
	r.bookings[b.ID] = *b
	return nil
}

func (r *memoryBookingRepo) GetByID(_ context.Context, id uuid.UUID) (booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return booking.Booking{}, apperrors.ErrNotFound
	}
	return b, nil
}

func (r *memoryBookingRepo) ListForCustomer(_ context.Context, customerID uuid.UUID, _, _ int) ([]booking.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Booking
	for _, b := range r.bookings {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryBookingRepo) ListForProvider(_ context.Context, providerID uuid.UUID, _, _ int) ([]booking.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Booking
	for _, b := range r.bookings {
		if b.ProviderID == providerID {
			out = append(out, b)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryBookingRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, expected, next booking.Status, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if b.Status != expected {
		return &apperrors.ConflictError{Current: string(b.Status), Requested: string(next)}
	}
	b.Status = next
	for key, value := range updates {
		switch key {
		case "payment_status":
			b.PaymentStatus = value.(booking.PaymentStatus)
		case "rejection_reason":
			b.RejectionReason = sql.NullString{String: value.(string), Valid: true}
		case "dispute_reason":
			b.DisputeReason = sql.NullString{String: value.(string), Valid: true}
		case "booking_date":
			b.BookingDate = value.(time.Time)
		case "time_slot_label":
			b.TimeSlotLabel = value.(string)
		case "proposed_date":
			if t, ok := value.(time.Time); ok {
				b.ProposedDate = sql.NullTime{Time: t, Valid: true}
			} else {
				b.ProposedDate = sql.NullTime{}
			}
		case "proposed_slot":
			if s, ok := value.(string); ok {
				b.ProposedSlot = sql.NullString{String: s, Valid: true}
			} else {
				b.ProposedSlot = sql.NullString{}
			}
		}
	}
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return nil
}

func (r *memoryBookingRepo) ExpireStale(_ context.Context, cutoff time.Time) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []booking.Booking
	for id, b := range r.bookings {
		if b.Status == booking.StatusPending && b.BookingDate.Before(cutoff) {
			b.Status = booking.StatusExpired
			r.bookings[id] = b
			expired = append(expired, b)
		}
	}
	return expired, nil
}

func (r *memoryBookingRepo) ListAwaitingPaymentSince(_ context.Context, cutoff time.Time) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []booking.Booking
	for _, b := range r.bookings {
		if b.Status == booking.StatusAwaitingPayment && b.CreatedAt.Before(cutoff) {
			due = append(due, b)
		}
	}
	return due, nil
}

func (r *memoryBookingRepo) set(b booking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
}

type fixture struct {
	repo       *memoryBookingRepo
	svc        *BookingService
	customerID uuid.UUID
	providerID uuid.UUID
}

func newFixture() *fixture {
	repo := newMemoryBookingRepo()
	return &fixture{
		repo:       repo,
		svc:        NewBookingService(repo, nil, nil),
		customerID: uuid.New(),
		providerID: uuid.New(),
	}
}

func (f *fixture) seed(status booking.Status, payment booking.PaymentStatus) booking.Booking {
	b := booking.Booking{
		ID:            uuid.New(),
		CustomerID:    f.customerID,
		ProviderID:    f.providerID,
		ServiceID:     uuid.New(),
		Status:        status,
		PaymentStatus: payment,
		BookingDate:   time.Now().Add(24 * time.Hour),
		TimeSlotLabel: "09:00-10:00",
		CreatedAt:     time.Now(),
	}
	f.repo.set(b)
	return b
}

func TestRequestCreatesPending(t *testing.T) {
	f := newFixture()
	b := booking.Booking{
		CustomerID:  f.customerID,
		ProviderID:  f.providerID,
		ServiceID:   uuid.New(),
		BookingDate: time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, f.svc.Request(context.Background(), &b))

	stored, err := f.repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status)
	assert.Equal(t, booking.PaymentPending, stored.PaymentStatus)
}

func TestRequestRejectsMissingParties(t *testing.T) {
	f := newFixture()
	b := booking.Booking{CustomerID: f.customerID, BookingDate: time.Now()}
	assert.ErrorIs(t, f.svc.Request(context.Background(), &b), apperrors.ErrInvalidInput)
}

func TestAcceptPending(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusPending, booking.PaymentPending)

	require.NoError(t, f.svc.Accept(context.Background(), b.ID, f.providerID))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAccepted, stored.Status)
}

func TestAcceptByWrongProviderIsForbidden(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusPending, booking.PaymentPending)

	err := f.svc.Accept(context.Background(), b.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusPending, stored.Status, "state unchanged on forbidden attempt")
}

func TestAcceptRejectedBookingConflicts(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusRejected, booking.PaymentPending)

	err := f.svc.Accept(context.Background(), b.ID, f.providerID)

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, string(booking.StatusRejected), conflict.Current)
	assert.Equal(t, string(booking.StatusAccepted), conflict.Requested)

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusRejected, stored.Status, "failed transition leaves stored state unchanged")
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusPending, booking.PaymentPending)

	assert.ErrorIs(t, f.svc.Reject(context.Background(), b.ID, f.providerID, ""), apperrors.ErrInvalidInput)

	require.NoError(t, f.svc.Reject(context.Background(), b.ID, f.providerID, "fully booked that day"))
	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusRejected, stored.Status)
	assert.Equal(t, "fully booked that day", stored.RejectionReason.String)
}

func TestRescheduleRoutesByProposer(t *testing.T) {
	f := newFixture()
	newDate := time.Now().Add(72 * time.Hour)

	byCustomer := f.seed(booking.StatusAccepted, booking.PaymentPending)
	require.NoError(t, f.svc.Reschedule(context.Background(), byCustomer.ID, f.customerID, newDate, "14:00-15:00"))
	stored, _ := f.repo.GetByID(context.Background(), byCustomer.ID)
	assert.Equal(t, booking.StatusRescheduledByCustomer, stored.Status)

	byProvider := f.seed(booking.StatusAccepted, booking.PaymentPending)
	require.NoError(t, f.svc.Reschedule(context.Background(), byProvider.ID, f.providerID, newDate, "15:00-16:00"))
	stored, _ = f.repo.GetByID(context.Background(), byProvider.ID)
	assert.Equal(t, booking.StatusRescheduledByProvider, stored.Status)
}

func TestAnswerRescheduleAcceptAdoptsProposedSlot(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAccepted, booking.PaymentPending)
	newDate := time.Now().Add(72 * time.Hour).Truncate(time.Second)

	require.NoError(t, f.svc.Reschedule(context.Background(), b.ID, f.customerID, newDate, "14:00-15:00"))
	require.NoError(t, f.svc.AnswerReschedule(context.Background(), b.ID, f.providerID, true))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAccepted, stored.Status)
	assert.True(t, stored.BookingDate.Equal(newDate))
	assert.Equal(t, "14:00-15:00", stored.TimeSlotLabel)
	assert.False(t, stored.ProposedDate.Valid, "proposal cleared after adoption")
}

func TestAnswerRescheduleDeclineCancels(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAccepted, booking.PaymentPending)

	require.NoError(t, f.svc.Reschedule(context.Background(), b.ID, f.providerID, time.Now().Add(72*time.Hour), ""))
	require.NoError(t, f.svc.AnswerReschedule(context.Background(), b.ID, f.customerID, false))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusCancelled, stored.Status)
}

func TestProposerCannotApproveOwnReschedule(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAccepted, booking.PaymentPending)

	require.NoError(t, f.svc.Reschedule(context.Background(), b.ID, f.customerID, time.Now().Add(72*time.Hour), ""))

	err := f.svc.AnswerReschedule(context.Background(), b.ID, f.customerID, true)
	var conflict *apperrors.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestCompleteBlocksFailedPayment(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAccepted, booking.PaymentFailed)

	err := f.svc.Complete(context.Background(), b.ID, f.providerID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAccepted, stored.Status)
}

func TestCompletePromotesPendingPaymentToPaid(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusEnRoute, booking.PaymentPending)

	require.NoError(t, f.svc.Complete(context.Background(), b.ID, f.providerID))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusCompleted, stored.Status)
	assert.Equal(t, booking.PaymentPaid, stored.PaymentStatus, "completed booking is implicitly paid")
}

func TestDisputeAndAdminResolution(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusCompleted, booking.PaymentPaid)

	assert.ErrorIs(t, f.svc.Dispute(context.Background(), b.ID, f.customerID, ""), apperrors.ErrInvalidInput)
	require.NoError(t, f.svc.Dispute(context.Background(), b.ID, f.customerID, "service incomplete"))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusDisputed, stored.Status)
	assert.Equal(t, "service incomplete", stored.DisputeReason.String)

	assert.ErrorIs(t, f.svc.ResolveDispute(context.Background(), b.ID, booking.StatusAccepted), apperrors.ErrInvalidInput)

	require.NoError(t, f.svc.ResolveDispute(context.Background(), b.ID, booking.StatusCancelled))
	stored, _ = f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusCancelled, stored.Status)
}

func TestConcurrentAcceptRejectOneLoses(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusPending, booking.PaymentPending)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = f.svc.Accept(context.Background(), b.ID, f.providerID)
	}()
	go func() {
		defer wg.Done()
		errs[1] = f.svc.Reject(context.Background(), b.ID, f.providerID, "double booked")
	}()
	wg.Wait()

	var conflicts int
	for _, err := range errs {
		if err != nil {
			var conflict *apperrors.ConflictError
			require.ErrorAs(t, err, &conflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts, "exactly one writer loses the race")

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Contains(t, []booking.Status{booking.StatusAccepted, booking.StatusRejected}, stored.Status)
}

func TestExpireStaleSweep(t *testing.T) {
	f := newFixture()
	cutoff := time.Now()

	stale := f.seed(booking.StatusPending, booking.PaymentPending)
	stale.BookingDate = time.Now().Add(-96 * time.Hour)
	f.repo.set(stale)

	fresh := f.seed(booking.StatusPending, booking.PaymentPending)
	accepted := f.seed(booking.StatusAccepted, booking.PaymentPaid)

	n, err := f.svc.ExpireStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	storedStale, _ := f.repo.GetByID(context.Background(), stale.ID)
	assert.Equal(t, booking.StatusExpired, storedStale.Status)

	storedFresh, _ := f.repo.GetByID(context.Background(), fresh.ID)
	assert.Equal(t, booking.StatusPending, storedFresh.Status, "bookings within the threshold are untouched")

	storedAccepted, _ := f.repo.GetByID(context.Background(), accepted.ID)
	assert.Equal(t, booking.StatusAccepted, storedAccepted.Status)

	// Running the sweep again finds nothing new.
	n, err = f.svc.ExpireStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "sweep is idempotent")
}

func TestStartAndSettlePayment(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAccepted, booking.PaymentPending)

	require.NoError(t, f.svc.StartPayment(context.Background(), b.ID, f.customerID))
	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAwaitingPayment, stored.Status)
	assert.Equal(t, booking.PaymentVerifying, stored.PaymentStatus)

	require.NoError(t, f.svc.SettlePayment(context.Background(), b.ID, true))
	stored, _ = f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAccepted, stored.Status)
	assert.Equal(t, booking.PaymentPaid, stored.PaymentStatus)
}

func TestSettlePaymentIgnoresLateCallback(t *testing.T) {
	f := newFixture()
	completed := f.seed(booking.StatusCompleted, booking.PaymentPaid)

	// A duplicate or delayed gateway verdict against a booking that already
	// left the payment window must not stamp it failed.
	err := f.svc.SettlePayment(context.Background(), completed.ID, false)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, string(booking.StatusCompleted), conflict.Current)

	stored, _ := f.repo.GetByID(context.Background(), completed.ID)
	assert.Equal(t, booking.StatusCompleted, stored.Status)
	assert.Equal(t, booking.PaymentPaid, stored.PaymentStatus, "completed booking stays paid")

	// Same for a success verdict arriving after the customer cancelled out.
	cancelled := f.seed(booking.StatusCancelled, booking.PaymentPending)
	err = f.svc.SettlePayment(context.Background(), cancelled.ID, true)
	require.ErrorAs(t, err, &conflict)

	stored, _ = f.repo.GetByID(context.Background(), cancelled.ID)
	assert.Equal(t, booking.PaymentPending, stored.PaymentStatus)
}

func TestSettlePaymentFailureKeepsWindowOpen(t *testing.T) {
	f := newFixture()
	b := f.seed(booking.StatusAwaitingPayment, booking.PaymentVerifying)

	require.NoError(t, f.svc.SettlePayment(context.Background(), b.ID, false))

	stored, _ := f.repo.GetByID(context.Background(), b.ID)
	assert.Equal(t, booking.StatusAwaitingPayment, stored.Status)
	assert.Equal(t, booking.PaymentFailed, stored.PaymentStatus)

	// And a failed payment can never produce a completed booking.
	err := f.svc.Complete(context.Background(), b.ID, f.providerID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
