package notify

import "github.com/google/uuid"

// Recipients resolves a domain-specific recipient shape to a flat, deduped
// set of user IDs. Implementations must tolerate zero values: a nil UUID, an
// empty slice or an unset party resolves to nothing rather than failing,
// because many domain events have optional participants.
type Recipients interface {
	UserIDs() []string
}

// User addresses a single user.
type User uuid.UUID

func (u User) UserIDs() []string {
	id := uuid.UUID(u)
	if id == uuid.Nil {
		return nil
	}
	return []string{id.String()}
}

// Users addresses any number of users.
type Users []uuid.UUID

func (u Users) UserIDs() []string {
	return dedupe(u)
}

// BookingParties addresses the participants of a booking by role. A booking
// without a provider yet is a valid shape.
type BookingParties struct {
	CustomerID uuid.UUID
	ProviderID uuid.UUID
}

func (p BookingParties) UserIDs() []string {
	return dedupe([]uuid.UUID{p.CustomerID, p.ProviderID})
}

func dedupe(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	return out
}
