package routing

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

type testMessage struct {
	id   models.MessageID
	hops int
	ttl  float64
}

func (m *testMessage) ID() models.MessageID { return m.id }
func (m *testMessage) HopCount() int        { return m.hops }
func (m *testMessage) TTL() float64         { return m.ttl }

type testConn struct {
	a, b models.NodeID
	up   bool
}

func (c *testConn) OtherEndpoint(self models.NodeID) models.NodeID {
	if self == c.a {
		return c.b
	}
	return c.a
}

func (c *testConn) IsUp() bool { return c.up }

// testWorld wires testHosts to each other so they can act as peers
type testWorld struct {
	now   float64
	hosts map[models.NodeID]*testHost
}

func newTestWorld() *testWorld {
	return &testWorld{hosts: make(map[models.NodeID]*testHost)}
}

// testHost is a minimal Host that records what the router asked of it
type testHost struct {
	world  *testWorld
	id     models.NodeID
	router *Router

	msgs         []models.Message
	conns        []models.Connection
	transferring bool
	cannotStart  bool
	rejectAll    bool
	deliverable  *models.Candidate

	dispatched [][]models.Candidate
	deleted    map[models.MessageID]bool
	received   []models.MessageID
}

func (w *testWorld) add(id models.NodeID, proto *Router) *testHost {
	h := &testHost{world: w, id: id, deleted: make(map[models.MessageID]bool)}
	h.router = proto.Replicate(h)
	w.hosts[id] = h
	return h
}

// link opens a connection between a and b and notifies both routers
func (w *testWorld) link(a, b models.NodeID) *testConn {
	c := &testConn{a: a, b: b, up: true}
	w.hosts[a].conns = append(w.hosts[a].conns, c)
	w.hosts[b].conns = append(w.hosts[b].conns, c)
	w.hosts[a].router.ConnectionChanged(c)
	w.hosts[b].router.ConnectionChanged(c)
	return c
}

func (w *testWorld) unlink(c *testConn) {
	c.up = false
	for _, id := range []models.NodeID{c.a, c.b} {
		h := w.hosts[id]
		h.router.ConnectionChanged(c)
		kept := h.conns[:0]
		for _, other := range h.conns {
			if other != models.Connection(c) {
				kept = append(kept, other)
			}
		}
		h.conns = kept
	}
}

func (h *testHost) give(id models.MessageID, hops int, ttl float64) {
	h.msgs = append(h.msgs, &testMessage{id: id, hops: hops, ttl: ttl})
}

func (h *testHost) ID() models.NodeID                { return h.id }
func (h *testHost) Now() float64                     { return h.world.now }
func (h *testHost) Messages() []models.Message       { return h.msgs }
func (h *testHost) Connections() []models.Connection { return h.conns }
func (h *testHost) IsTransferring() bool             { return h.transferring }
func (h *testHost) CanStartTransfer() bool           { return !h.cannotStart }

func (h *testHost) HasMessage(id models.MessageID) bool {
	for _, m := range h.msgs {
		if m.ID() == id {
			return true
		}
	}
	return false
}

func (h *testHost) DeliverFinalRecipientMessages() (models.Candidate, bool) {
	if h.deliverable == nil {
		return models.Candidate{}, false
	}
	return *h.deliverable, true
}

func (h *testHost) DispatchCandidates(c []models.Candidate) (models.Candidate, bool) {
	h.dispatched = append(h.dispatched, c)
	if h.rejectAll || len(c) == 0 {
		return models.Candidate{}, false
	}
	return c[0], true
}

func (h *testHost) DeleteMessage(id models.MessageID, dueToForwardLimit bool) {
	h.deleted[id] = dueToForwardLimit
	kept := h.msgs[:0]
	for _, m := range h.msgs {
		if m.ID() != id {
			kept = append(kept, m)
		}
	}
	h.msgs = kept
}

func (h *testHost) MessageTransferred(id models.MessageID, from models.NodeID) models.Message {
	h.received = append(h.received, id)
	var hops int
	var ttl float64
	if sender, ok := h.world.hosts[from]; ok {
		for _, m := range sender.msgs {
			if m.ID() == id {
				hops, ttl = m.HopCount(), m.TTL()
			}
		}
	}
	m := &testMessage{id: id, hops: hops + 1, ttl: ttl}
	h.msgs = append(h.msgs, m)
	return m
}

func (h *testHost) Peer(id models.NodeID) (Peer, bool) {
	other, ok := h.world.hosts[id]
	if !ok {
		return nil, false
	}
	return other, true
}

// Peer side

func (h *testHost) HasForwardRecord(id models.MessageID) bool { return h.router.HasForwardRecord(id) }
func (h *testHost) Forwarded(id models.MessageID)             { h.router.Forwarded(id) }

func quietConfig(policy Policy) *Config {
	cfg := NewConfig()
	cfg.Set("logging.level", "disabled")
	cfg.Set("routing.policy", string(policy))
	return cfg
}
