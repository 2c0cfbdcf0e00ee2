package database

import (
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"localmart/internal/domain/booking"
	"localmart/internal/domain/product"
)

// SeedDemoData inserts development fixtures: a handful of bookings across the
// lifecycle plus products sitting at low stock, so the sweep and digest jobs
// have something to chew on locally. Not for production use.
func SeedDemoData() error {
	customerID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	providerID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	serviceID := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	shopID := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	bookings := []booking.Booking{
		{
			ID:            uuid.New(),
			CustomerID:    customerID,
			ProviderID:    providerID,
			ServiceID:     serviceID,
			Status:        booking.StatusPending,
			PaymentStatus: booking.PaymentPending,
			BookingDate:   time.Now().Add(72 * time.Hour),
			TimeSlotLabel: "09:00-10:00",
		},
		{
			ID:            uuid.New(),
			CustomerID:    customerID,
			ProviderID:    providerID,
			ServiceID:     serviceID,
			Status:        booking.StatusPending,
			PaymentStatus: booking.PaymentPending,
			BookingDate:   time.Now().Add(-96 * time.Hour), // stale, picked up by the sweep
			TimeSlotLabel: "14:00-15:00",
		},
		{
			ID:            uuid.New(),
			CustomerID:    customerID,
			ProviderID:    providerID,
			ServiceID:     serviceID,
			Status:        booking.StatusAccepted,
			PaymentStatus: booking.PaymentPaid,
			BookingDate:   time.Now().Add(24 * time.Hour),
			TimeSlotLabel: "11:00-12:00",
		},
		{
			ID:            uuid.New(),
			CustomerID:    customerID,
			ProviderID:    providerID,
			ServiceID:     serviceID,
			Status:        booking.StatusDisputed,
			PaymentStatus: booking.PaymentPaid,
			BookingDate:   time.Now().Add(-48 * time.Hour),
			TimeSlotLabel: "16:00-17:00",
			DisputeReason: sql.NullString{String: "service not delivered as described", Valid: true},
		},
	}

	products := []product.Product{
		{ID: uuid.New(), ShopID: shopID, OwnerID: providerID, Name: "Olive oil 1L", Stock: 2},
		{ID: uuid.New(), ShopID: shopID, OwnerID: providerID, Name: "Honey 500g", Stock: 0},
		{ID: uuid.New(), ShopID: shopID, OwnerID: providerID, Name: "Soap bar", Stock: 40},
	}

	for i := range bookings {
		if err := DB.Create(&bookings[i]).Error; err != nil {
			return err
		}
	}
	for i := range products {
		if err := DB.Create(&products[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("Seeded %d bookings and %d products", len(bookings), len(products))
	return nil
}
