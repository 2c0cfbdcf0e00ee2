package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		actor   Actor
		allowed bool
	}{
		{"provider accepts pending", StatusPending, StatusAccepted, ActorProvider, true},
		{"customer cannot accept own request", StatusPending, StatusAccepted, ActorCustomer, false},
		{"provider rejects pending", StatusPending, StatusRejected, ActorProvider, true},
		{"customer proposes reschedule on pending", StatusPending, StatusRescheduledByCustomer, ActorCustomer, true},
		{"provider proposes reschedule on accepted", StatusAccepted, StatusRescheduledByProvider, ActorProvider, true},
		{"provider answers customer proposal", StatusRescheduledByCustomer, StatusAccepted, ActorProvider, true},
		{"customer cannot approve own proposal", StatusRescheduledByCustomer, StatusAccepted, ActorCustomer, false},
		{"customer answers provider proposal", StatusRescheduledByProvider, StatusAccepted, ActorCustomer, true},
		{"provider en route on accepted", StatusAccepted, StatusEnRoute, ActorProvider, true},
		{"en route completes", StatusEnRoute, StatusCompleted, ActorProvider, true},
		{"accepted completes directly", StatusAccepted, StatusCompleted, ActorProvider, true},
		{"customer disputes completed", StatusCompleted, StatusDisputed, ActorCustomer, true},
		{"provider disputes accepted", StatusAccepted, StatusDisputed, ActorProvider, true},
		{"admin resolves dispute to completed", StatusDisputed, StatusCompleted, ActorAdmin, true},
		{"admin resolves dispute to cancelled", StatusDisputed, StatusCancelled, ActorAdmin, true},
		{"provider cannot resolve dispute", StatusDisputed, StatusCompleted, ActorProvider, false},
		{"dispute has no other exit", StatusDisputed, StatusAccepted, ActorAdmin, false},
		{"system expires pending", StatusPending, StatusExpired, ActorSystem, true},
		{"provider cannot expire", StatusPending, StatusExpired, ActorProvider, false},
		{"customer cancels pending", StatusPending, StatusCancelled, ActorCustomer, true},
		{"customer opens payment window", StatusAccepted, StatusAwaitingPayment, ActorCustomer, true},
		{"system settles payment", StatusAwaitingPayment, StatusAccepted, ActorSystem, true},
		{"cannot accept a rejected booking", StatusRejected, StatusAccepted, ActorProvider, false},
		{"cannot revive an expired booking", StatusExpired, StatusAccepted, ActorProvider, false},
		{"cannot complete a cancelled booking", StatusCancelled, StatusCompleted, ActorProvider, false},
		{"cannot expire an accepted booking", StatusAccepted, StatusExpired, ActorSystem, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to, tt.actor))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCancelled, StatusRejected, StatusExpired}
	for _, s := range terminal {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
	}

	live := []Status{
		StatusPending, StatusAccepted, StatusRescheduledByCustomer,
		StatusRescheduledByProvider, StatusAwaitingPayment, StatusEnRoute, StatusDisputed,
	}
	for _, s := range live {
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}

// No edge in the table may leave a terminal status, with one exception:
// a completed booking can still be disputed.
func TestTerminalStatesHaveNoExits(t *testing.T) {
	for e := range transitions {
		if e.from == StatusCompleted && e.to == StatusDisputed {
			continue
		}
		assert.False(t, IsTerminal(e.from), "terminal status %s has outgoing edge to %s", e.from, e.to)
	}
}

func TestCanComplete(t *testing.T) {
	assert.True(t, CanComplete(PaymentPending))
	assert.True(t, CanComplete(PaymentVerifying))
	assert.True(t, CanComplete(PaymentPaid))
	assert.False(t, CanComplete(PaymentFailed))
}
