package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"localmart/internal/domain/booking"
	"localmart/internal/notify"
	"localmart/internal/repository"
	apperrors "localmart/pkg/errors"
	"localmart/pkg/logger"
)

// BookingService owns every booking status transition. All writes go through
// the repository's conditional update, so two racing actors cannot both win:
// the loser gets a ConflictError carrying the fresh status.
//
// Notification emission is a side effect of a successful transition and is
// never allowed to fail the transition itself.
type BookingService struct {
	repo     repository.BookingRepository
	notifier *notify.Broadcaster
	log      *logger.Logger
}

func NewBookingService(repo repository.BookingRepository, notifier *notify.Broadcaster, log *logger.Logger) *BookingService {
	return &BookingService{repo: repo, notifier: notifier, log: log}
}

// Request creates a new pending booking on behalf of a customer.
func (s *BookingService) Request(ctx context.Context, b *booking.Booking) error {
	if b.CustomerID == uuid.Nil || b.ProviderID == uuid.Nil || b.ServiceID == uuid.Nil {
		return apperrors.ErrInvalidInput
	}
	if b.BookingDate.IsZero() {
		return apperrors.ErrInvalidInput
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = booking.StatusPending
	if b.PaymentStatus == "" {
		b.PaymentStatus = booking.PaymentPending
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return err
	}
	s.notifyChange(*b)
	return nil
}

func (s *BookingService) GetByID(ctx context.Context, id uuid.UUID) (booking.Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error) {
	return s.repo.ListForCustomer(ctx, customerID, page, limit)
}

func (s *BookingService) ListForProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error) {
	return s.repo.ListForProvider(ctx, providerID, page, limit)
}

// Accept moves a pending booking to accepted. Provider action.
func (s *BookingService) Accept(ctx context.Context, id, providerID uuid.UUID) error {
	b, err := s.loadForParty(ctx, id, providerID, booking.ActorProvider)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, booking.StatusAccepted, booking.ActorProvider, nil)
}

// Reject moves a pending booking to rejected. The reason is mandatory.
func (s *BookingService) Reject(ctx context.Context, id, providerID uuid.UUID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", apperrors.ErrInvalidInput)
	}
	b, err := s.loadForParty(ctx, id, providerID, booking.ActorProvider)
	if err != nil {
		return err
	}
	updates := map[string]any{"rejection_reason": reason}
	return s.transition(ctx, b, booking.StatusRejected, booking.ActorProvider, updates)
}

// Reschedule records a new proposed slot from either party. The resulting
// status encodes who proposed, so the other party knows the answer is theirs
// to give.
func (s *BookingService) Reschedule(ctx context.Context, id, actorID uuid.UUID, newDate time.Time, newSlot string) error {
	if newDate.IsZero() {
		return apperrors.ErrInvalidInput
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	actor, err := partyRole(b, actorID)
	if err != nil {
		return err
	}
	next := booking.StatusRescheduledByCustomer
	if actor == booking.ActorProvider {
		next = booking.StatusRescheduledByProvider
	}

	updates := map[string]any{
		"proposed_date": newDate,
		"proposed_slot": newSlot,
	}
	return s.transition(ctx, b, next, actor, updates)
}

// AnswerReschedule resolves a pending reschedule proposal. Accepting adopts
// the proposed slot and returns the booking to accepted; declining cancels
// the booking.
func (s *BookingService) AnswerReschedule(ctx context.Context, id, actorID uuid.UUID, accept bool) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor, err := partyRole(b, actorID)
	if err != nil {
		return err
	}

	if !accept {
		return s.transition(ctx, b, booking.StatusCancelled, actor, nil)
	}

	updates := map[string]any{
		"proposed_date": sql.NullTime{},
		"proposed_slot": sql.NullString{},
	}
	if b.ProposedDate.Valid {
		updates["booking_date"] = b.ProposedDate.Time
	}
	if b.ProposedSlot.Valid {
		updates["time_slot_label"] = b.ProposedSlot.String
	}
	return s.transition(ctx, b, booking.StatusAccepted, actor, updates)
}

// MarkEnRoute flags an accepted booking as in progress on the day of service.
func (s *BookingService) MarkEnRoute(ctx context.Context, id, providerID uuid.UUID) error {
	b, err := s.loadForParty(ctx, id, providerID, booking.ActorProvider)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, booking.StatusEnRoute, booking.ActorProvider, nil)
}

// Complete finishes a booking. A failed payment blocks completion; a payment
// still pending or under verification is promoted to paid, because a
// completed booking must never sit in a negative revenue state.
func (s *BookingService) Complete(ctx context.Context, id, providerID uuid.UUID) error {
	b, err := s.loadForParty(ctx, id, providerID, booking.ActorProvider)
	if err != nil {
		return err
	}
	if !booking.CanComplete(b.PaymentStatus) {
		return fmt.Errorf("%w: cannot complete booking with failed payment", apperrors.ErrConflict)
	}
	var updates map[string]any
	if b.PaymentStatus != booking.PaymentPaid {
		updates = map[string]any{"payment_status": booking.PaymentPaid}
	}
	return s.transition(ctx, b, booking.StatusCompleted, booking.ActorProvider, updates)
}

// Dispute flags an accepted or completed booking, recording the reason.
func (s *BookingService) Dispute(ctx context.Context, id, actorID uuid.UUID, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: dispute reason is required", apperrors.ErrInvalidInput)
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor, err := partyRole(b, actorID)
	if err != nil {
		return err
	}
	updates := map[string]any{"dispute_reason": reason}
	return s.transition(ctx, b, booking.StatusDisputed, actor, updates)
}

// ResolveDispute is the only way out of disputed, and only an admin takes it.
func (s *BookingService) ResolveDispute(ctx context.Context, id uuid.UUID, resolution booking.Status) error {
	if resolution != booking.StatusCompleted && resolution != booking.StatusCancelled {
		return fmt.Errorf("%w: dispute resolves to completed or cancelled", apperrors.ErrInvalidInput)
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if resolution == booking.StatusCompleted && !booking.CanComplete(b.PaymentStatus) {
		return fmt.Errorf("%w: cannot complete booking with failed payment", apperrors.ErrConflict)
	}
	var updates map[string]any
	if resolution == booking.StatusCompleted && b.PaymentStatus != booking.PaymentPaid {
		updates = map[string]any{"payment_status": booking.PaymentPaid}
	}
	return s.transition(ctx, b, resolution, booking.ActorAdmin, updates)
}

// Cancel withdraws a booking that has not been served yet. Customer action.
func (s *BookingService) Cancel(ctx context.Context, id, customerID uuid.UUID) error {
	b, err := s.loadForParty(ctx, id, customerID, booking.ActorCustomer)
	if err != nil {
		return err
	}
	return s.transition(ctx, b, booking.StatusCancelled, booking.ActorCustomer, nil)
}

// StartPayment opens the payment window for an accepted booking.
func (s *BookingService) StartPayment(ctx context.Context, id, customerID uuid.UUID) error {
	b, err := s.loadForParty(ctx, id, customerID, booking.ActorCustomer)
	if err != nil {
		return err
	}
	updates := map[string]any{"payment_status": booking.PaymentVerifying}
	return s.transition(ctx, b, booking.StatusAwaitingPayment, booking.ActorCustomer, updates)
}

// SettlePayment records the payment gateway's verdict for an awaiting-payment
// booking. Success returns the booking to accepted; failure keeps the window
// open with payment marked failed.
func (s *BookingService) SettlePayment(ctx context.Context, id uuid.UUID, paid bool) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// A late or duplicate gateway callback must not touch a booking that has
	// already left the payment window.
	if b.Status != booking.StatusAwaitingPayment {
		return &apperrors.ConflictError{Current: string(b.Status), Requested: string(booking.StatusAwaitingPayment)}
	}
	if !paid {
		err := s.repo.UpdateStatusIf(ctx, b.ID, b.Status, b.Status, map[string]any{
			"payment_status": booking.PaymentFailed,
		})
		if err != nil {
			return err
		}
		s.notifyChange(b)
		return nil
	}
	updates := map[string]any{"payment_status": booking.PaymentPaid}
	return s.transition(ctx, b, booking.StatusAccepted, booking.ActorSystem, updates)
}

// ExpireStale sweeps pending bookings older than cutoff into expired and
// notifies both parties of each one. Safe to run repeatedly: already-expired
// rows are not matched again.
func (s *BookingService) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		return len(expired), err
	}
	for _, b := range expired {
		s.notifyChange(b)
	}
	return len(expired), nil
}

// RemindPendingPayments nudges customers whose payment window has been open
// longer than cutoff allows.
func (s *BookingService) RemindPendingPayments(ctx context.Context, cutoff time.Time) (int, error) {
	due, err := s.repo.ListAwaitingPaymentSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, b := range due {
		if s.notifier != nil {
			s.notifier.NotifyNotificationChange(b.CustomerID)
			s.notifier.NotifyBookingChange(notify.BookingParties{CustomerID: b.CustomerID}, b.ID)
		}
	}
	return len(due), nil
}

// transition validates the edge against the state table, performs the
// conditional update and emits the change notification.
func (s *BookingService) transition(ctx context.Context, b booking.Booking, next booking.Status, actor booking.Actor, updates map[string]any) error {
	if !booking.CanTransition(b.Status, next, actor) {
		return &apperrors.ConflictError{Current: string(b.Status), Requested: string(next)}
	}
	if err := s.repo.UpdateStatusIf(ctx, b.ID, b.Status, next, updates); err != nil {
		return err
	}
	b.Status = next
	s.notifyChange(b)
	return nil
}

// notifyChange is fire-and-forget: the broadcaster swallows delivery
// failures, and a nil notifier (tests, tooling) is a no-op.
func (s *BookingService) notifyChange(b booking.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyBookingChange(notify.BookingParties{
		CustomerID: b.CustomerID,
		ProviderID: b.ProviderID,
	}, b.ID)
}

// loadForParty fetches the booking and checks the acting user actually holds
// the given role on it. Authentication happened upstream; this guards against
// acting on someone else's booking.
func (s *BookingService) loadForParty(ctx context.Context, id, actorID uuid.UUID, role booking.Actor) (booking.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	switch role {
	case booking.ActorCustomer:
		if b.CustomerID != actorID {
			return booking.Booking{}, apperrors.ErrForbidden
		}
	case booking.ActorProvider:
		if b.ProviderID != actorID {
			return booking.Booking{}, apperrors.ErrForbidden
		}
	}
	return b, nil
}

func partyRole(b booking.Booking, actorID uuid.UUID) (booking.Actor, error) {
	switch actorID {
	case b.CustomerID:
		return booking.ActorCustomer, nil
	case b.ProviderID:
		return booking.ActorProvider, nil
	default:
		return "", apperrors.ErrForbidden
	}
}
