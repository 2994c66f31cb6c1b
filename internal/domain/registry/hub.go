package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/webitel/pricing-sync-service/internal/domain/event"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

var ErrHubClosed = errors.New("hub is shut down")

// SeedFunc builds the initialState frame for a newcomer from the state
// that is current at the moment of registration.
type SeedFunc func(snap model.Snapshot, revision uint64) (event.Eventer, error)

// Fanout reports the outcome of a single broadcast.
type Fanout struct {
	Revision  uint64      // state revision after the operation
	Delivered int         // recipients that accepted the frame
	Evicted   []Connector // recipients dropped because their mailbox was saturated
}

// Hubber defines the gateway for connection membership and frame routing.
type Hubber interface {
	Attach(conn Connector, seed SeedFunc) error
	Detach(connID uuid.UUID) bool
	Replace(senderID uuid.UUID, snap model.Snapshot, ev event.Eventer) Fanout
	Relay(senderID uuid.UUID, ev event.Eventer) Fanout
	Snapshot() (model.Snapshot, uint64)
	IsConnected(connID uuid.UUID) bool
	Stats() model.HubStats
	Shutdown()
}

// Hub owns the Connection Registry and the Shared State Cell.
//
// Both are mutated only while holding mu, which makes "register then
// seed" and "replace then broadcast" atomic with respect to each other.
type Hub struct {
	config hubConfig

	mu     sync.RWMutex
	conns  map[uuid.UUID]Connector
	state  *StateCell
	closed bool
}

func NewHub(initial model.Snapshot, opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{clock: clockwork.NewRealClock()},
		conns:  make(map[uuid.UUID]Connector),
		state:  NewStateCell(initial),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.config.startedAt = h.config.clock.Now()
	return h
}

// Attach registers conn and enqueues its initialState frame in one step, so
// the seed is always the first frame and no update can fall in between.
func (h *Hub) Attach(conn Connector, seed SeedFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	snap, rev := h.state.Load()
	ev, err := seed(snap, rev)
	if err != nil {
		return err
	}
	if !conn.Send(ev) {
		return errors.New("connection rejected initial state")
	}

	h.conns[conn.GetID()] = conn
	return nil
}

// Detach removes the connection and closes it. Returns false if it was not registered.
func (h *Hub) Detach(connID uuid.UUID) bool {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Replace swaps the Shared State and fans ev out to everyone but the sender.
func (h *Hub) Replace(senderID uuid.UUID, snap model.Snapshot, ev event.Eventer) Fanout {
	h.mu.Lock()
	rev := h.state.replace(snap)
	out := h.fanout(senderID, ev)
	h.mu.Unlock()

	out.Revision = rev
	closeAll(out.Evicted)
	return out
}

// Relay fans ev out to everyone but the sender without touching state.
func (h *Hub) Relay(senderID uuid.UUID, ev event.Eventer) Fanout {
	h.mu.Lock()
	_, rev := h.state.Load()
	out := h.fanout(senderID, ev)
	h.mu.Unlock()

	out.Revision = rev
	closeAll(out.Evicted)
	return out
}

// fanout must be called with mu held for writing.
func (h *Hub) fanout(senderID uuid.UUID, ev event.Eventer) Fanout {
	var out Fanout
	for _, conn := range Recipients(h.conns, senderID) {
		// [ISOLATION] A saturated recipient is dropped; the rest still receive the frame.
		if conn.Send(ev) {
			out.Delivered++
			continue
		}
		delete(h.conns, conn.GetID())
		out.Evicted = append(out.Evicted, conn)
	}
	return out
}

func (h *Hub) Snapshot() (model.Snapshot, uint64) {
	return h.state.Load()
}

func (h *Hub) IsConnected(connID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connID]
	return ok
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	total := len(h.conns)
	h.mu.RUnlock()

	snap, rev := h.state.Load()
	return model.HubStats{
		TotalConnections: total,
		StateRevision:    rev,
		LastUpdate:       snap.State.LastUpdate,
		Items:            len(snap.State.Beers),
		Uptime:           h.config.clock.Since(h.config.startedAt),
	}
}

// Shutdown closes every connection and refuses further attachments.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]Connector, 0, len(h.conns))
	for id, conn := range h.conns {
		conns = append(conns, conn)
		delete(h.conns, id)
	}
	h.mu.Unlock()

	closeAll(conns)
}

func closeAll(conns []Connector) {
	for _, conn := range conns {
		conn.Close()
	}
}
