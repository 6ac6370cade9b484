package models

import (
	"fmt"
)

// NodeID identifies a network participant
type NodeID string

// MessageID identifies a message; copies held at different nodes share it
type MessageID string

// Message is the routing view of a buffered message
type Message interface {
	ID() MessageID
	HopCount() int // relays already traversed
	TTL() float64  // remaining time-to-live in simulated seconds
}

// Connection is an open (or just closed) link between two nodes
type Connection interface {
	OtherEndpoint(self NodeID) NodeID
	IsUp() bool
}

// Candidate is a (message, connection) pair offered for transfer
type Candidate struct {
	Message    Message    `json:"-"`
	Connection Connection `json:"-"`
}

// String renders the candidate for logs
func (c Candidate) String() string {
	if c.Message == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (hops=%d ttl=%.0fs)", c.Message.ID(), c.Message.HopCount(), c.Message.TTL())
}

// ContactEvent is a link state change seen by one node
type ContactEvent struct {
	Neighbor  NodeID  `json:"neighbor"`
	Timestamp float64 `json:"timestamp"` // simulated seconds
	Up        bool    `json:"up"`
}

// NodeSnapshot is the externally visible routing state of one node
type NodeSnapshot struct {
	ID             NodeID            `json:"id"`
	Policy         string            `json:"policy"`
	State          string            `json:"state"`
	Lambda         *float64          `json:"lambda,omitempty"` // nil until the first sample
	Messages       int               `json:"messages"`
	ForwardCounts  map[MessageID]int `json:"forward_counts"`
	PendingContact int               `json:"pending_contacts"`
}
