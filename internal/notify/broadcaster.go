package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"localmart/pkg/logger"
)

// Invalidation is the wire format pushed over SSE. Keys are opaque cache
// tokens; the client refetches whatever it maps them to.
type Invalidation struct {
	Type string   `json:"type"`
	Keys []string `json:"keys"`
}

// Publisher fans a payload out to sibling server instances. Optional: with a
// nil publisher the broadcaster only reaches clients on this instance.
type Publisher interface {
	PublishToUser(ctx context.Context, userID string, payload []byte) error
}

// Broadcaster maps domain changes to invalidation pushes. Delivery is
// fire-and-forget: a failed publish is logged and never propagated to the
// mutation that triggered it.
type Broadcaster struct {
	registry  *Registry
	publisher Publisher
	log       *logger.Logger
}

func NewBroadcaster(registry *Registry, publisher Publisher, log *logger.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, publisher: publisher, log: log}
}

// BroadcastInvalidation is the low-level primitive all typed notifiers wrap.
// Nil or empty recipients are a no-op.
func (b *Broadcaster) BroadcastInvalidation(recipients Recipients, keys ...string) {
	if recipients == nil || len(keys) == 0 {
		return
	}
	ids := recipients.UserIDs()
	if len(ids) == 0 {
		return
	}

	payload, err := json.Marshal(Invalidation{Type: "invalidate", Keys: keys})
	if err != nil {
		if b.log != nil {
			b.log.Errorf("marshal invalidation: %s", err)
		}
		return
	}

	for _, id := range ids {
		b.registry.Send(id, payload)
		if b.publisher != nil {
			if err := b.publisher.PublishToUser(context.Background(), id, payload); err != nil && b.log != nil {
				b.log.Warnf("publish invalidation for user %s: %s", id, err)
			}
		}
	}
}

// NotifyBookingChange tells both booking parties to refetch their booking
// lists and the changed booking.
func (b *Broadcaster) NotifyBookingChange(parties BookingParties, bookingID uuid.UUID) {
	keys := []string{"bookings"}
	if bookingID != uuid.Nil {
		keys = append(keys, "bookings/"+bookingID.String())
	}
	b.BroadcastInvalidation(parties, keys...)
}

// NotifyOrderChange tells the order participants to refetch their orders.
func (b *Broadcaster) NotifyOrderChange(recipients Recipients, orderID uuid.UUID) {
	keys := []string{"orders"}
	if orderID != uuid.Nil {
		keys = append(keys, "orders/"+orderID.String())
	}
	b.BroadcastInvalidation(recipients, keys...)
}

// NotifyCartChange tells a user their cart changed.
func (b *Broadcaster) NotifyCartChange(userID uuid.UUID) {
	b.BroadcastInvalidation(User(userID), "cart")
}

// NotifyWishlistChange tells a user their wishlist changed.
func (b *Broadcaster) NotifyWishlistChange(userID uuid.UUID) {
	b.BroadcastInvalidation(User(userID), "wishlist")
}

// NotifyNotificationChange tells a user their notification feed changed.
func (b *Broadcaster) NotifyNotificationChange(userID uuid.UUID) {
	b.BroadcastInvalidation(User(userID), "notifications")
}

// NotifyNotificationChanges is the multi-recipient form of
// NotifyNotificationChange.
func (b *Broadcaster) NotifyNotificationChanges(userIDs []uuid.UUID) {
	b.BroadcastInvalidation(Users(userIDs), "notifications")
}
