package notify

import (
	"sync"

	apperrors "localmart/pkg/errors"
)

// Registry tracks open SSE connections per user. It is constructed by the
// composition root and handed to the broadcaster and the SSE handler; there
// is no package-level instance.
type Registry struct {
	mu sync.RWMutex

	// conns keeps each user's connections in creation order, oldest first,
	// so per-user eviction can drop the right one.
	conns      map[string][]*Conn
	total      int
	maxPerUser int
	maxTotal   int
}

func NewRegistry(maxPerUser, maxTotal int) *Registry {
	if maxPerUser < 1 {
		maxPerUser = 5
	}
	if maxTotal < 1 {
		maxTotal = 10000
	}
	return &Registry{
		conns:      make(map[string][]*Conn),
		maxPerUser: maxPerUser,
		maxTotal:   maxTotal,
	}
}

// Add registers a new connection for userID. When the user is at their cap
// the oldest connection is closed to make room. When the whole registry is
// at capacity the attempt is refused and the client should fall back to
// polling.
func (r *Registry) Add(userID string) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.conns[userID]

	if len(existing) >= r.maxPerUser {
		oldest := existing[0]
		r.conns[userID] = existing[1:]
		r.total--
		oldest.Close()
		existing = r.conns[userID]
	}

	if r.total >= r.maxTotal {
		return nil, apperrors.ErrConnectionLimit
	}

	conn := newConn(userID)
	r.conns[userID] = append(existing, conn)
	r.total++
	return conn, nil
}

// Remove drops a connection from the registry. Called by the SSE handler on
// disconnect; idempotent for already-removed connections.
func (r *Registry) Remove(conn *Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.conns[conn.UserID]
	for i, c := range conns {
		if c.ID == conn.ID {
			r.conns[conn.UserID] = append(conns[:i], conns[i+1:]...)
			r.total--
			break
		}
	}
	if len(r.conns[conn.UserID]) == 0 {
		delete(r.conns, conn.UserID)
	}
	conn.Close()
}

// Send pushes a payload to every open connection of userID.
func (r *Registry) Send(userID string, payload []byte) {
	r.mu.RLock()
	conns := r.conns[userID]
	for _, c := range conns {
		c.Push(payload)
	}
	r.mu.RUnlock()
}

// CountForUser returns how many connections userID currently holds.
func (r *Registry) CountForUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Total returns the number of connections across all users.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// CloseAll closes every connection, used during server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conns := range r.conns {
		for _, c := range conns {
			c.Close()
		}
	}
	r.conns = make(map[string][]*Conn)
	r.total = 0
}
