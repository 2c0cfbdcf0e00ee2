package booking

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents booking_status
type Status string

const (
	StatusPending               Status = "pending"
	StatusAccepted              Status = "accepted"
	StatusRejected              Status = "rejected"
	StatusRescheduledByCustomer Status = "rescheduled_pending_provider_approval"
	StatusRescheduledByProvider Status = "rescheduled_by_provider"
	StatusAwaitingPayment       Status = "awaiting_payment"
	StatusEnRoute               Status = "en_route"
	StatusCompleted             Status = "completed"
	StatusCancelled             Status = "cancelled"
	StatusExpired               Status = "expired"
	StatusDisputed              Status = "disputed"
)

// PaymentStatus represents booking_payment_status
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentVerifying PaymentStatus = "verifying"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
)

// Booking represents the bookings table. Terminal bookings are never deleted;
// they are retained for audit and dispute history.
type Booking struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	CustomerID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"customer_id"`
	ProviderID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"provider_id"`
	ServiceID     uuid.UUID     `gorm:"type:uuid;not null" json:"service_id"`
	Status        Status        `gorm:"type:booking_status;not null;default:'pending';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:booking_payment_status;not null;default:'pending'" json:"payment_status"`
	BookingDate   time.Time     `gorm:"not null;index" json:"booking_date"`
	TimeSlotLabel string        `gorm:"size:64" json:"time_slot_label"`
	// ProposedDate/ProposedSlot hold a pending reschedule proposal until the
	// other party answers it.
	ProposedDate    sql.NullTime   `json:"proposed_date,omitempty"`
	ProposedSlot    sql.NullString `gorm:"size:64" json:"proposed_slot,omitempty"`
	RejectionReason sql.NullString `json:"rejection_reason,omitempty"`
	DisputeReason   sql.NullString `json:"dispute_reason,omitempty"`
	CreatedAt       time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"default:now()" json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}
