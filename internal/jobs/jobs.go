package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"localmart/config"
	"localmart/internal/notify"
	"localmart/internal/repository"
	"localmart/internal/services"
	"localmart/pkg/logger"
)

// Job names double as lock names, so per-job TTL overrides key off them.
const (
	JobBookingExpiration = "booking-expiration"
	JobPaymentReminder   = "payment-reminder"
	JobLowStockDigest    = "low-stock-digest"
)

// RegisterAll wires the three background jobs onto the scheduler.
func RegisterAll(s *Scheduler, cfg *config.Config, bookings *services.BookingService, products repository.ProductRepository, notifier *notify.Broadcaster, log *logger.Logger) error {
	if err := s.Register(JobBookingExpiration, cfg.Jobs.BookingExpirationCron, BookingExpirationTask(cfg, bookings, log)); err != nil {
		return err
	}
	if err := s.Register(JobPaymentReminder, cfg.Jobs.PaymentReminderCron, PaymentReminderTask(cfg, bookings, log)); err != nil {
		return err
	}
	return s.Register(JobLowStockDigest, cfg.Jobs.LowStockDigestCron, LowStockDigestTask(cfg, products, notifier, log))
}

// BookingExpirationTask sweeps pending bookings whose date passed the
// expiration threshold.
func BookingExpirationTask(cfg *config.Config, bookings *services.BookingService, log *logger.Logger) Task {
	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-cfg.Booking.ExpirationAge)
		n, err := bookings.ExpireStale(ctx, cutoff)
		if err != nil {
			return err
		}
		if n > 0 && log != nil {
			log.Infof("expired %d stale bookings", n)
		}
		return nil
	}
}

// PaymentReminderTask nudges customers with an open payment window.
func PaymentReminderTask(cfg *config.Config, bookings *services.BookingService, log *logger.Logger) Task {
	return func(ctx context.Context) error {
		cutoff := time.Now().Add(-cfg.Booking.PaymentDueAge)
		n, err := bookings.RemindPendingPayments(ctx, cutoff)
		if err != nil {
			return err
		}
		if n > 0 && log != nil {
			log.Infof("sent %d payment reminders", n)
		}
		return nil
	}
}

// LowStockDigestTask tells each shop owner which of their products fell to or
// below the stock threshold, one digest per owner.
func LowStockDigestTask(cfg *config.Config, products repository.ProductRepository, notifier *notify.Broadcaster, log *logger.Logger) Task {
	return func(ctx context.Context) error {
		low, err := products.ListLowStock(ctx, cfg.Booking.LowStockMinimum)
		if err != nil {
			return err
		}
		if len(low) == 0 {
			return nil
		}

		owners := make([]uuid.UUID, 0, len(low))
		seen := make(map[uuid.UUID]struct{}, len(low))
		for _, p := range low {
			if _, ok := seen[p.OwnerID]; ok {
				continue
			}
			seen[p.OwnerID] = struct{}{}
			owners = append(owners, p.OwnerID)
		}

		if notifier != nil {
			notifier.NotifyNotificationChanges(owners)
		}
		if log != nil {
			log.Infof("low-stock digest: %d products across %d shops", len(low), len(owners))
		}
		return nil
	}
}
