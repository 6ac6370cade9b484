package sim

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

// Message is one buffered copy of a message. Copies at different nodes
// share the id and creation data; hops differ.
type Message struct {
	id      models.MessageID
	from    models.NodeID
	to      models.NodeID
	created float64
	expires float64
	hops    int
	clock   *clock
}

func (m *Message) ID() models.MessageID { return m.id }
func (m *Message) HopCount() int        { return m.hops }

// TTL is the remaining lifetime in simulated seconds
func (m *Message) TTL() float64 { return m.expires - m.clock.now }

func (m *Message) From() models.NodeID { return m.from }
func (m *Message) To() models.NodeID   { return m.to }
func (m *Message) Created() float64    { return m.created }

func (m *Message) expired() bool { return m.TTL() <= 0 }

// relay returns the copy a receiver stores
func (m *Message) relay() *Message {
	c := *m
	c.hops++
	return &c
}

type clock struct {
	now float64
}

// link is an undirected connection; a and b are stored in sorted order
type link struct {
	a, b  models.NodeID
	up    bool
	since float64
}

func newLink(x, y models.NodeID, now float64) *link {
	if y < x {
		x, y = y, x
	}
	return &link{a: x, b: y, up: true, since: now}
}

func (l *link) OtherEndpoint(self models.NodeID) models.NodeID {
	if self == l.a {
		return l.b
	}
	return l.a
}

func (l *link) IsUp() bool { return l.up }

type linkKey struct {
	a, b models.NodeID
}

func keyOf(x, y models.NodeID) linkKey {
	if y < x {
		x, y = y, x
	}
	return linkKey{a: x, b: y}
}

// transfer is an in-flight relay occupying both endpoints
type transfer struct {
	msg  *Message
	from *Node
	to   *Node
	link *link
	done float64
}
