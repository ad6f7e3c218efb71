package presence

import (
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/oedima/gis-colab/internal/metrics"
)

// Conn is the transport handle the broadcaster delivers to. The
// concrete websocket adapter lives at the server boundary; tests supply
// in-memory fakes.
type Conn interface {
	// WriteText delivers one text message; an error marks the connection dead
	WriteText(msg []byte) error
	// Close tears the transport down; safe to call more than once
	Close() error
}

// rosterMessage is the membership notification sent on every change
type rosterMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// Broadcaster owns the live connection set. Safe for concurrent use.
type Broadcaster struct {
	mu    sync.RWMutex
	conns map[Conn]string // connection -> identity
	log   *slog.Logger
}

// NewBroadcaster creates a broadcaster with no connections
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		conns: make(map[Conn]string),
		log:   log,
	}
}

// Join registers an authenticated connection under its identity and
// broadcasts the updated roster to every connection, the new one
// included
func (b *Broadcaster) Join(conn Conn, identity string) {
	b.mu.Lock()
	b.conns[conn] = identity
	size := len(b.conns)
	b.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(size))
	b.log.Info("presence_join", "identity", identity, "connections", size)
	b.broadcastRoster()
}

// Leave removes the connection and broadcasts the updated roster. A
// connection that was never registered (or already dropped by a failed
// send) is a no-op except for the roster broadcast.
func (b *Broadcaster) Leave(conn Conn) {
	b.mu.Lock()
	identity, ok := b.conns[conn]
	delete(b.conns, conn)
	size := len(b.conns)
	b.mu.Unlock()

	if ok {
		metrics.ConnectionsActive.Set(float64(size))
		b.log.Info("presence_leave", "identity", identity, "connections", size)
	}
	b.broadcastRoster()
}

// Relay forwards the message verbatim to every live connection,
// including the one it originated from. Send failures drop the dead
// connection and trigger a roster broadcast; nothing is surfaced to the
// caller.
func (b *Broadcaster) Relay(msg []byte) {
	if b.fanout(msg) {
		b.broadcastRoster()
	}
}

// Identities returns the distinct identities currently connected, sorted
func (b *Broadcaster) Identities() []string {
	b.mu.RLock()
	seen := make(map[string]bool, len(b.conns))
	users := make([]string, 0, len(b.conns))
	for _, identity := range b.conns {
		if !seen[identity] {
			seen[identity] = true
			users = append(users, identity)
		}
	}
	b.mu.RUnlock()
	slices.Sort(users)
	return users
}

// Len returns the number of live connections
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// broadcastRoster sends the current membership to everyone. A dead
// connection discovered here shrinks the set and requires announcing
// the newer roster, so the pass repeats until a send-clean round; the
// set shrinks on every repeat, so this terminates.
func (b *Broadcaster) broadcastRoster() {
	for {
		msg, err := json.Marshal(rosterMessage{Type: "users", Users: b.Identities()})
		if err != nil {
			b.log.Error("roster_marshal_failed", "err", err)
			return
		}
		if !b.fanout(msg) {
			return
		}
	}
}

// fanout delivers one message to a snapshot of the connection set and
// reports whether any connection died during delivery. Sends happen
// outside the lock so a slow peer never blocks membership changes.
func (b *Broadcaster) fanout(msg []byte) (membershipChanged bool) {
	b.mu.RLock()
	targets := make([]Conn, 0, len(b.conns))
	for c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	metrics.BroadcastsTotal.Inc()

	var dead []Conn
	for _, c := range targets {
		if err := c.WriteText(msg); err != nil {
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return false
	}

	b.mu.Lock()
	removed := 0
	for _, c := range dead {
		if identity, ok := b.conns[c]; ok {
			delete(b.conns, c)
			removed++
			b.log.Warn("presence_drop_dead_conn", "identity", identity)
		}
		_ = c.Close()
	}
	size := len(b.conns)
	b.mu.Unlock()

	if removed > 0 {
		metrics.ConnectionsActive.Set(float64(size))
	}
	return removed > 0
}
