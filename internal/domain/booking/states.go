package booking

// Actor identifies who is driving a status transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorProvider Actor = "provider"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system"
)

type edge struct {
	from Status
	to   Status
}

// transitions is the full edge table of the booking lifecycle. A transition is
// legal only if the edge exists and the acting party is in the allowed set.
var transitions = map[edge][]Actor{
	// provider answers a booking request
	{StatusPending, StatusAccepted}: {ActorProvider},
	{StatusPending, StatusRejected}: {ActorProvider},

	// either party proposes a new slot; the state records who proposed
	{StatusPending, StatusRescheduledByCustomer}:  {ActorCustomer},
	{StatusPending, StatusRescheduledByProvider}:  {ActorProvider},
	{StatusAccepted, StatusRescheduledByCustomer}: {ActorCustomer},
	{StatusAccepted, StatusRescheduledByProvider}: {ActorProvider},

	// the non-proposing party answers the proposal
	{StatusRescheduledByCustomer, StatusAccepted}:  {ActorProvider},
	{StatusRescheduledByCustomer, StatusCancelled}: {ActorProvider, ActorCustomer},
	{StatusRescheduledByProvider, StatusAccepted}:  {ActorCustomer},
	{StatusRescheduledByProvider, StatusCancelled}: {ActorCustomer, ActorProvider},

	// payment collection window
	{StatusAccepted, StatusAwaitingPayment}:  {ActorCustomer, ActorSystem},
	{StatusAwaitingPayment, StatusAccepted}:  {ActorSystem},
	{StatusAwaitingPayment, StatusCancelled}: {ActorCustomer},

	// day-of-service flow
	{StatusAccepted, StatusEnRoute}:   {ActorProvider},
	{StatusAccepted, StatusCompleted}: {ActorProvider},
	{StatusEnRoute, StatusCompleted}:  {ActorProvider},

	// disputes and their admin resolution
	{StatusAccepted, StatusDisputed}:  {ActorCustomer, ActorProvider},
	{StatusCompleted, StatusDisputed}: {ActorCustomer, ActorProvider},
	{StatusDisputed, StatusCompleted}: {ActorAdmin},
	{StatusDisputed, StatusCancelled}: {ActorAdmin},

	// customer withdraws an unanswered request; sweep expires stale ones
	{StatusPending, StatusCancelled}: {ActorCustomer},
	{StatusPending, StatusExpired}:   {ActorSystem},
}

// CanTransition reports whether actor may move a booking from one status to
// another.
func CanTransition(from, to Status, actor Actor) bool {
	actors, ok := transitions[edge{from, to}]
	if !ok {
		return false
	}
	for _, a := range actors {
		if a == actor {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking lifecycle has ended. Completed is
// terminal for scheduling purposes even though a dispute can still reopen it.
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanComplete enforces the payment invariant: a booking never completes while
// its payment has failed. A completion with payment still pending is treated
// as implicitly paid by the caller.
func CanComplete(p PaymentStatus) bool {
	return p != PaymentFailed
}
