package httpdto

import (
	"time"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	ProviderID    uuid.UUID `json:"provider_id" binding:"required"`
	ServiceID     uuid.UUID `json:"service_id" binding:"required"`
	BookingDate   time.Time `json:"booking_date" binding:"required"`
	TimeSlotLabel string    `json:"time_slot_label" binding:"required"`
}

type RejectBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RescheduleBookingRequest struct {
	BookingDate   time.Time `json:"booking_date" binding:"required"`
	TimeSlotLabel string    `json:"time_slot_label"`
}

type RescheduleAnswerRequest struct {
	Accept bool `json:"accept"`
}

type DisputeBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SettlePaymentRequest carries the payment service's verdict for a booking
// in the awaiting-payment state.
type SettlePaymentRequest struct {
	Paid bool `json:"paid"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required,oneof=completed cancelled"`
}
