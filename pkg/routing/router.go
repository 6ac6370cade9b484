// Package routing implements replica-aware epidemic forwarding. A Router
// holds the per-node state shared by all variants (forward counters and the
// offer/transfer state machine) and delegates estimation and admission to a
// Strategy: Binary, BinaryV1 or Epic.
package routing

import (
	"github.com/rs/zerolog"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// State is the per-node forwarding state
type State int

const (
	StateIdle State = iota
	StateOffering
	StateTransferring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateTransferring:
		return "transferring"
	default:
		return "unknown"
	}
}

// Router is the forwarding policy of one node
type Router struct {
	host     Host
	cfg      *Config
	strategy Strategy
	ordering Ordering
	scope    ContactScope
	logger   zerolog.Logger

	forwards map[models.MessageID]int
	state    State
}

// NewRouter composes strategy into a router for host. host may be nil for a
// prototype that is only used through Replicate.
func NewRouter(host Host, strategy Strategy, cfg *Config) *Router {
	logger := cfg.CreateLogger().With().Str("policy", string(strategy.Name())).Logger()
	if host != nil {
		logger = logger.With().Str("node", string(host.ID())).Logger()
	}

	ordering := cfg.CandidateOrder()
	if ordering != OrderByPrediction {
		ordering = OrderInsertion
	}
	scope := cfg.ContactScope()
	if scope != ScopeNode {
		scope = ScopeNeighbor
	}

	return &Router{
		host:     host,
		cfg:      cfg,
		strategy: strategy,
		ordering: ordering,
		scope:    scope,
		logger:   logger,
		forwards: make(map[models.MessageID]int),
		state:    StateIdle,
	}
}

// Replicate returns a router for host with this router's configuration and
// fresh history, estimator and counter state
func (r *Router) Replicate(host Host) *Router {
	return NewRouter(host, r.strategy.Clone(), r.cfg)
}

// Tick runs one forwarding round. It returns the transfer the host started,
// if any.
func (r *Router) Tick() (models.Candidate, bool) {
	exported, err := r.strategy.Tick(r.host)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Export failed, routing continues")
	} else if exported {
		r.logger.Info().Float64("time", r.host.Now()).Msg("Exported lambda and replica series")
	}

	if r.host.IsTransferring() {
		r.state = StateTransferring
		return models.Candidate{}, false
	}
	r.state = StateIdle
	if !r.host.CanStartTransfer() {
		return models.Candidate{}, false
	}

	// Messages for a current neighbour go first
	if c, ok := r.host.DeliverFinalRecipientMessages(); ok {
		r.state = StateTransferring
		return c, true
	}

	candidates := r.SelectCandidates()
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}

	r.state = StateOffering
	c, ok := r.host.DispatchCandidates(candidates)
	if !ok {
		r.state = StateIdle
		return models.Candidate{}, false
	}
	r.state = StateTransferring
	r.logger.Debug().
		Str("message", string(c.Message.ID())).
		Int("candidates", len(candidates)).
		Msg("Transfer started")
	return c, true
}

// SelectCandidates collects every (message, connection) pair the strategy
// admits, skipping neighbours that are mid-transfer and messages they hold
func (r *Router) SelectCandidates() []models.Candidate {
	self := r.host.ID()
	msgs := r.host.Messages()
	r.strategy.Prepare(r.host, msgs)

	var candidates []models.Candidate
	for _, con := range r.host.Connections() {
		if !con.IsUp() {
			continue
		}
		nb := r.peer(con.OtherEndpoint(self))
		if nb.IsTransferring() {
			continue
		}

		for _, m := range msgs {
			if nb.HasMessage(m.ID()) {
				continue
			}
			if !r.strategy.Admit(nb, m) {
				continue
			}
			candidates = append(candidates, models.Candidate{Message: m, Connection: con})
		}
	}

	r.ordering.Apply(candidates, r.strategy.Prediction)
	return candidates
}

// ConnectionChanged feeds a link up/down event to the contact history
func (r *Router) ConnectionChanged(con models.Connection) {
	self := r.host.ID()
	other := con.OtherEndpoint(self)
	key := other
	if r.scope == ScopeNode {
		key = self
	}

	res := r.strategy.ConnectionChanged(r.host, key, con.IsUp(), r.host.Now())

	switch {
	case res.Duplicate:
		r.logger.Debug().Str("neighbor", string(other)).Msg("Repeated link-down for pending neighbour")
	case res.HasSample && !res.Accepted:
		r.logger.Debug().
			Str("neighbor", string(other)).
			Float64("sample", res.Sample).
			Msg("Dropped non-positive inter-contact sample")
	case res.Accepted:
		r.logger.Debug().
			Str("neighbor", string(other)).
			Float64("sample", res.Sample).
			Float64("lambda", res.Lambda).
			Msg("Meeting rate updated")
	}
	if res.Predicted > 0 {
		r.logger.Debug().Int("messages", res.Predicted).Msg("Shared prediction pass")
	}
}

// MessageTransferred completes a received relay: the host records the
// message, then the sender's router is told so it can count the relay.
func (r *Router) MessageTransferred(id models.MessageID, from models.NodeID) models.Message {
	m := r.host.MessageTransferred(id, from)
	r.peer(from).Forwarded(id)
	return m
}

// Forwarded counts one completed relay of id from this node and drops the
// local copy when the strategy's cap is reached
func (r *Router) Forwarded(id models.MessageID) {
	r.forwards[id]++
	count := r.forwards[id]
	if r.strategy.Forwarded(id, count) {
		r.logger.Debug().Str("message", string(id)).Int("forwards", count).Msg("Forward limit reached, dropping local copy")
		r.host.DeleteMessage(id, true)
	}
}

// HasForwardRecord reports whether this node has relayed id at least once
func (r *Router) HasForwardRecord(id models.MessageID) bool {
	_, ok := r.forwards[id]
	return ok
}

// ForwardCount returns how many times this node relayed id
func (r *Router) ForwardCount(id models.MessageID) int {
	return r.forwards[id]
}

// State returns the current forwarding state
func (r *Router) State() State { return r.state }

// Policy returns the strategy's policy name
func (r *Router) Policy() Policy { return r.strategy.Name() }

// Strategy returns the composed strategy
func (r *Router) Strategy() Strategy { return r.strategy }

// Lambda returns the node's meeting-rate estimate; ok is false until known
func (r *Router) Lambda() (float64, bool) {
	if r.host == nil {
		return 0, false
	}
	return r.strategy.Lambda(r.host)
}

// Prediction returns the latest replica prediction for id
func (r *Router) Prediction(id models.MessageID) (replica.Prediction, bool) {
	return r.strategy.Prediction(id)
}

// Snapshot returns the router's externally visible state
func (r *Router) Snapshot() models.NodeSnapshot {
	snap := models.NodeSnapshot{
		Policy:        string(r.strategy.Name()),
		State:         r.state.String(),
		ForwardCounts: make(map[models.MessageID]int, len(r.forwards)),
	}
	for id, n := range r.forwards {
		snap.ForwardCounts[id] = n
	}
	if r.host != nil {
		snap.ID = r.host.ID()
		snap.Messages = len(r.host.Messages())
	}
	if lambda, ok := r.Lambda(); ok {
		snap.Lambda = &lambda
	}
	if p, ok := r.strategy.(interface{ Pending() int }); ok {
		snap.PendingContact = p.Pending()
	}
	return snap
}

func (r *Router) peer(id models.NodeID) Peer {
	if p, ok := r.host.Peer(id); ok && p != nil {
		return p
	}
	return absentPeer{}
}
