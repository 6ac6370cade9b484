package sim

import (
	"github.com/decred/dcrd/lru"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/routing"
)

// Node is a simulated host. It implements routing.Host for its own router
// and routing.Peer for its neighbours' routers. All methods run under the
// owning Network's lock.
type Node struct {
	id     models.NodeID
	net    *Network
	router *routing.Router

	buffer    []*Message // FIFO, oldest first
	delivered lru.Cache  // ids of messages delivered to this node

	sending   *transfer
	receiving *transfer
	inbound   *Message // copy being handed to the router on completion
}

func newNode(id models.NodeID, net *Network) *Node {
	return &Node{
		id:        id,
		net:       net,
		delivered: lru.NewCache(net.opts.DeliveredCache),
	}
}

func (n *Node) ID() models.NodeID { return n.id }
func (n *Node) Now() float64      { return n.net.clock.now }

// Router returns the node's router
func (n *Node) Router() *routing.Router { return n.router }

func (n *Node) Messages() []models.Message {
	msgs := make([]models.Message, len(n.buffer))
	for i, m := range n.buffer {
		msgs[i] = m
	}
	return msgs
}

func (n *Node) Connections() []models.Connection {
	return n.net.connections(n.id)
}

// HasMessage reports a buffered copy or an earlier delivery to this node
func (n *Node) HasMessage(id models.MessageID) bool {
	if n.find(id) != nil {
		return true
	}
	return n.delivered.Contains(id)
}

func (n *Node) IsTransferring() bool {
	return n.sending != nil || n.receiving != nil
}

func (n *Node) CanStartTransfer() bool {
	if n.IsTransferring() || len(n.buffer) == 0 {
		return false
	}
	return len(n.Connections()) > 0
}

func (n *Node) DeliverFinalRecipientMessages() (models.Candidate, bool) {
	conns := n.Connections()
	for _, m := range n.buffer {
		for _, con := range conns {
			if con.OtherEndpoint(n.id) != m.to {
				continue
			}
			if n.tryStart(m, con.(*link)) {
				return models.Candidate{Message: m, Connection: con}, true
			}
		}
	}
	return models.Candidate{}, false
}

func (n *Node) DispatchCandidates(candidates []models.Candidate) (models.Candidate, bool) {
	// deliverable first, then in the order given
	for _, final := range []bool{true, false} {
		for _, c := range candidates {
			other := c.Connection.OtherEndpoint(n.id)
			m := n.find(c.Message.ID())
			if m == nil || (m.to == other) != final {
				continue
			}
			l, ok := c.Connection.(*link)
			if !ok {
				continue
			}
			if n.tryStart(m, l) {
				return c, true
			}
		}
	}
	return models.Candidate{}, false
}

func (n *Node) DeleteMessage(id models.MessageID, dueToForwardLimit bool) {
	if n.sending != nil && n.sending.msg.id == id {
		n.net.abort(n.sending)
	}
	if !n.remove(id) {
		return
	}
	if dueToForwardLimit {
		n.net.stats.ForwardLimitDrops++
	}
}

func (n *Node) MessageTransferred(id models.MessageID, from models.NodeID) models.Message {
	in := n.inbound
	n.inbound = nil
	if in == nil || in.id != id {
		sender, ok := n.net.nodes[from]
		if !ok {
			return nil
		}
		if in = sender.find(id); in == nil {
			return nil
		}
	}

	m := in.relay()
	if m.to == n.id {
		if !n.delivered.Contains(id) {
			n.delivered.Add(id)
			n.net.recordDelivery(m)
		}
		return m
	}
	if n.find(id) != nil {
		return m
	}
	n.store(m)
	n.net.stats.Relayed++
	return m
}

func (n *Node) Peer(id models.NodeID) (routing.Peer, bool) {
	other, ok := n.net.nodes[id]
	if !ok {
		return nil, false
	}
	return other, true
}

func (n *Node) HasForwardRecord(id models.MessageID) bool {
	return n.router.HasForwardRecord(id)
}

func (n *Node) Forwarded(id models.MessageID) {
	n.router.Forwarded(id)
}

// Snapshot returns the node's routing state
func (n *Node) Snapshot() models.NodeSnapshot {
	return n.router.Snapshot()
}

func (n *Node) tryStart(m *Message, l *link) bool {
	if !l.up || n.IsTransferring() {
		return false
	}
	to, ok := n.net.nodes[l.OtherEndpoint(n.id)]
	if !ok || to.IsTransferring() || to.HasMessage(m.id) {
		return false
	}
	n.net.start(m, n, to, l)
	return true
}

// store appends m, dropping the oldest idle messages past the buffer size
func (n *Node) store(m *Message) {
	n.buffer = append(n.buffer, m)
	limit := n.net.opts.BufferSize
	for limit > 0 && len(n.buffer) > limit {
		victim := n.oldestIdle()
		if victim == nil {
			break
		}
		n.remove(victim.id)
		n.net.stats.Dropped++
	}
}

func (n *Node) oldestIdle() *Message {
	for _, m := range n.buffer {
		if n.sending == nil || n.sending.msg.id != m.id {
			return m
		}
	}
	return nil
}

func (n *Node) find(id models.MessageID) *Message {
	for _, m := range n.buffer {
		if m.id == id {
			return m
		}
	}
	return nil
}

func (n *Node) remove(id models.MessageID) bool {
	for i, m := range n.buffer {
		if m.id == id {
			n.buffer = append(n.buffer[:i], n.buffer[i+1:]...)
			return true
		}
	}
	return false
}
