package routing

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

// Local is the part of the owning node a strategy may consult
type Local interface {
	ID() models.NodeID
	Now() float64 // simulated seconds, non-decreasing
	Messages() []models.Message
}

// Host is the environment a Router is embedded in. Calls on one host never
// overlap; the host drives Tick, ConnectionChanged and MessageTransferred
// from a single goroutine per simulation step.
type Host interface {
	Local

	Connections() []models.Connection
	HasMessage(id models.MessageID) bool
	IsTransferring() bool
	CanStartTransfer() bool

	// DeliverFinalRecipientMessages tries messages whose destination is a
	// current neighbour. ok reports that a transfer started.
	DeliverFinalRecipientMessages() (models.Candidate, bool)
	// DispatchCandidates starts at most one transfer, preferring messages
	// deliverable to the connection's endpoint, then candidate order.
	DispatchCandidates(candidates []models.Candidate) (models.Candidate, bool)
	DeleteMessage(id models.MessageID, dueToForwardLimit bool)
	// MessageTransferred is the host's own bookkeeping for a received message.
	MessageTransferred(id models.MessageID, from models.NodeID) models.Message

	// Peer resolves a neighbour's router view; ok is false when the
	// neighbour is unknown to the host.
	Peer(id models.NodeID) (Peer, bool)
}

// Neighbor is the read-only view a router has of a peer
type Neighbor interface {
	HasMessage(id models.MessageID) bool
	IsTransferring() bool
	HasForwardRecord(id models.MessageID) bool
}

// Peer lets a receiving router report a completed relay to the sender.
// Only the sender's router updates its own counters.
type Peer interface {
	Neighbor
	Forwarded(id models.MessageID)
}

// absentPeer stands in for a neighbour the host has no state for
type absentPeer struct{}

func (absentPeer) HasMessage(models.MessageID) bool       { return false }
func (absentPeer) IsTransferring() bool                   { return false }
func (absentPeer) HasForwardRecord(models.MessageID) bool { return false }
func (absentPeer) Forwarded(models.MessageID)             {}
