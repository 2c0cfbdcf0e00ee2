package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"localmart/internal/domain/booking"
	"localmart/internal/domain/product"
)

type BookingRepository interface {
	Create(ctx context.Context, b *booking.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (booking.Booking, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error)

	// UpdateStatusIf performs the conditional status update that serializes
	// concurrent transitions: the row is touched only while its stored status
	// still equals expected. A stale caller gets ErrConflict, never a silent
	// overwrite.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next booking.Status, updates map[string]any) error

	// ExpireStale flips pending bookings whose booking date is older than
	// cutoff to expired and returns the affected bookings for notification.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]booking.Booking, error)

	// ListAwaitingPaymentSince returns awaiting-payment bookings created
	// before cutoff, for the payment reminder job.
	ListAwaitingPaymentSince(ctx context.Context, cutoff time.Time) ([]booking.Booking, error)
}

type ProductRepository interface {
	ListLowStock(ctx context.Context, threshold int) ([]product.Product, error)
}
