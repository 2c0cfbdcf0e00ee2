package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"localmart/internal/domain/booking"
	apperrors "localmart/pkg/errors"
)

type PostgresBookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &PostgresBookingRepository{db: db}
}

func (r *PostgresBookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	res := r.db.WithContext(ctx).Create(b)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (booking.Booking, error) {
	var b booking.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, apperrors.ErrNotFound
		}
		return booking.Booking{}, err
	}
	return b, nil
}

func (r *PostgresBookingRepository) ListForCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error) {
	return r.list(ctx, "customer_id = ?", customerID, page, limit)
}

func (r *PostgresBookingRepository) ListForProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]booking.Booking, int64, error) {
	return r.list(ctx, "provider_id = ?", providerID, page, limit)
}

func (r *PostgresBookingRepository) list(ctx context.Context, cond string, id uuid.UUID, page, limit int) ([]booking.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&booking.Booking{}).Where(cond, id).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []booking.Booking
	err := r.db.WithContext(ctx).
		Where(cond, id).
		Order("booking_date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// UpdateStatusIf is the race-safe conditional transition. RowsAffected == 0
// means another writer changed the status first; the caller is handed a
// conflict carrying the fresh status so it can surface current vs requested.
func (r *PostgresBookingRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next booking.Status, updates map[string]any) error {
	values := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&booking.Booking{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &apperrors.ConflictError{Current: string(current.Status), Requested: string(next)}
	}
	return nil
}

func (r *PostgresBookingRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	var stale []booking.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND booking_date < ?", booking.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	// The status guard keeps the sweep idempotent: rows another instance (or
	// a user action) already moved on are skipped, not re-expired.
	expired := make([]booking.Booking, 0, len(stale))
	for _, b := range stale {
		res := r.db.WithContext(ctx).
			Model(&booking.Booking{}).
			Where("id = ? AND status = ?", b.ID, booking.StatusPending).
			Updates(map[string]any{"status": booking.StatusExpired, "updated_at": time.Now()})
		if res.Error != nil {
			return expired, res.Error
		}
		if res.RowsAffected > 0 {
			b.Status = booking.StatusExpired
			expired = append(expired, b)
		}
	}
	return expired, nil
}

func (r *PostgresBookingRepository) ListAwaitingPaymentSince(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	var bookings []booking.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", booking.StatusAwaitingPayment, cutoff).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
