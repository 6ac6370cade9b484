package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/routing"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrSelfLink      = errors.New("link endpoints must differ")
	ErrSelfAddressed = errors.New("message source and destination must differ")
)

// Stats are the run's delivery counters
type Stats struct {
	Created           int     `json:"created"`
	Delivered         int     `json:"delivered"`
	Relayed           int     `json:"relayed"`
	Started           int     `json:"started"`
	Aborted           int     `json:"aborted"`
	Expired           int     `json:"expired"`
	Dropped           int     `json:"dropped"`
	ForwardLimitDrops int     `json:"forward_limit_drops"`
	LatencyMean       float64 `json:"latency_mean"`
	HopMean           float64 `json:"hop_mean"`
	DeliveryRatio     float64 `json:"delivery_ratio"`
	Time              float64 `json:"time"`
}

// Network is a trace-driven simulated world. Public methods are safe to
// call from several goroutines; each takes the network lock.
type Network struct {
	mu     sync.Mutex
	opts   *Options
	proto  *routing.Router
	logger zerolog.Logger

	clock *clock
	nodes map[models.NodeID]*Node
	index map[models.NodeID]int64
	names []models.NodeID
	graph *simple.UndirectedGraph
	links map[linkKey]*link

	stats     Stats
	latencies []float64
	hops      []float64
}

// NewNetwork creates an empty network. Every node's router is replicated
// from proto.
func NewNetwork(opts *Options, proto *routing.Router, logger zerolog.Logger) *Network {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.DeliveredCache == 0 {
		opts.DeliveredCache = DefaultOptions().DeliveredCache
	}
	if opts.Step <= 0 {
		opts.Step = 1
	}

	return &Network{
		opts:   opts,
		proto:  proto,
		logger: logger.With().Str("component", "sim").Logger(),
		clock:  &clock{},
		nodes:  make(map[models.NodeID]*Node),
		index:  make(map[models.NodeID]int64),
		graph:  simple.NewUndirectedGraph(),
		links:  make(map[linkKey]*link),
	}
}

// AddNode registers id; adding an existing node is a no-op
func (n *Network) AddNode(id models.NodeID) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addNode(id)
}

// Node returns the node registered as id
func (n *Network) Node(id models.NodeID) (*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	node, ok := n.nodes[id]
	return node, ok
}

// Now returns the simulated clock
func (n *Network) Now() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clock.now
}

// LinkUp opens a link between a and b and notifies both routers
func (n *Network) LinkUp(a, b models.NodeID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.linkUp(a, b)
}

// LinkDown closes the link between a and b, aborting any transfer on it
func (n *Network) LinkDown(a, b models.NodeID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.linkDown(a, b)
}

// CreateMessage buffers a new message at from. A non-positive ttl selects
// Options.DefaultTTL.
func (n *Network) CreateMessage(from, to models.NodeID, ttl float64) (models.MessageID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.createMessage(from, to, ttl)
}

// Step completes due transfers, expires messages, ticks every router in
// node id order and advances the clock by one step
func (n *Network) Step() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.step()
}

// Run applies events in time order, stepping the clock until it passes until
func (n *Network) Run(events []Event, until float64) error {
	i := 0
	for {
		n.mu.Lock()
		if n.clock.now > until {
			n.mu.Unlock()
			return nil
		}
		for i < len(events) && events[i].Time <= n.clock.now {
			if err := n.apply(events[i]); err != nil {
				n.mu.Unlock()
				return fmt.Errorf("event at %.1f: %w", events[i].Time, err)
			}
			i++
		}
		n.step()
		n.mu.Unlock()
	}
}

// Stats returns the current counters
func (n *Network) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := n.stats
	s.Time = n.clock.now
	if len(n.latencies) > 0 {
		s.LatencyMean = stat.Mean(n.latencies, nil)
		s.HopMean = stat.Mean(n.hops, nil)
	}
	if s.Created > 0 {
		s.DeliveryRatio = float64(s.Delivered) / float64(s.Created)
	}
	return s
}

// Snapshots returns every node's routing state ordered by node id
func (n *Network) Snapshots() []models.NodeSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	snaps := make([]models.NodeSnapshot, 0, len(n.nodes))
	for _, id := range n.sortedIDs() {
		snaps = append(snaps, n.nodes[id].Snapshot())
	}
	return snaps
}

// NodeSnapshot returns one node's routing state
func (n *Network) NodeSnapshot(id models.NodeID) (models.NodeSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	node, ok := n.nodes[id]
	if !ok {
		return models.NodeSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return node.Snapshot(), nil
}

// Degree returns how many links of id are currently up
func (n *Network) Degree(id models.NodeID) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	idx, ok := n.index[id]
	if !ok {
		return 0
	}
	return n.graph.From(idx).Len()
}

func (n *Network) addNode(id models.NodeID) *Node {
	if node, ok := n.nodes[id]; ok {
		return node
	}

	idx := int64(len(n.names))
	n.index[id] = idx
	n.names = append(n.names, id)
	n.graph.AddNode(simple.Node(idx))

	node := newNode(id, n)
	node.router = n.proto.Replicate(node)
	n.nodes[id] = node
	return node
}

func (n *Network) resolve(id models.NodeID) (*Node, error) {
	if node, ok := n.nodes[id]; ok {
		return node, nil
	}
	if !n.opts.AutoAddNodes {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return n.addNode(id), nil
}

func (n *Network) linkUp(a, b models.NodeID) error {
	if a == b {
		return ErrSelfLink
	}
	na, err := n.resolve(a)
	if err != nil {
		return err
	}
	nb, err := n.resolve(b)
	if err != nil {
		return err
	}

	key := keyOf(a, b)
	if l, ok := n.links[key]; ok && l.up {
		return nil
	}
	l := newLink(a, b, n.clock.now)
	n.links[key] = l
	n.graph.SetEdge(simple.Edge{F: simple.Node(n.index[a]), T: simple.Node(n.index[b])})

	n.logger.Debug().Str("a", string(a)).Str("b", string(b)).Float64("time", n.clock.now).Msg("Link up")
	na.router.ConnectionChanged(l)
	nb.router.ConnectionChanged(l)
	return nil
}

func (n *Network) linkDown(a, b models.NodeID) error {
	if a == b {
		return ErrSelfLink
	}
	na, err := n.resolve(a)
	if err != nil {
		return err
	}
	nb, err := n.resolve(b)
	if err != nil {
		return err
	}

	key := keyOf(a, b)
	l, ok := n.links[key]
	if !ok || !l.up {
		return nil
	}
	for _, node := range []*Node{na, nb} {
		if node.sending != nil && node.sending.link == l {
			n.abort(node.sending)
		}
	}
	l.up = false
	delete(n.links, key)
	n.graph.RemoveEdge(n.index[a], n.index[b])

	n.logger.Debug().Str("a", string(a)).Str("b", string(b)).Float64("time", n.clock.now).Msg("Link down")
	na.router.ConnectionChanged(l)
	nb.router.ConnectionChanged(l)
	return nil
}

// connections lists id's open links ordered by neighbour id
func (n *Network) connections(id models.NodeID) []models.Connection {
	idx, ok := n.index[id]
	if !ok {
		return nil
	}

	var others []models.NodeID
	it := n.graph.From(idx)
	for it.Next() {
		others = append(others, n.names[it.Node().ID()])
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	conns := make([]models.Connection, 0, len(others))
	for _, other := range others {
		if l, ok := n.links[keyOf(id, other)]; ok {
			conns = append(conns, l)
		}
	}
	return conns
}

func (n *Network) createMessage(from, to models.NodeID, ttl float64) (models.MessageID, error) {
	if from == to {
		return "", ErrSelfAddressed
	}
	src, err := n.resolve(from)
	if err != nil {
		return "", err
	}
	if _, err := n.resolve(to); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = n.opts.DefaultTTL
	}

	m := &Message{
		id:      models.MessageID(uuid.NewString()),
		from:    from,
		to:      to,
		created: n.clock.now,
		expires: n.clock.now + ttl,
		clock:   n.clock,
	}
	src.store(m)
	n.stats.Created++
	return m.id, nil
}

func (n *Network) apply(ev Event) error {
	switch ev.Kind {
	case EventLinkUp:
		return n.linkUp(ev.A, ev.B)
	case EventLinkDown:
		return n.linkDown(ev.A, ev.B)
	case EventCreate:
		_, err := n.createMessage(ev.A, ev.B, ev.TTL)
		return err
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

func (n *Network) step() {
	ids := n.sortedIDs()

	for _, id := range ids {
		node := n.nodes[id]
		if t := node.sending; t != nil && t.done <= n.clock.now {
			n.complete(t)
		}
	}

	for _, id := range ids {
		node := n.nodes[id]
		for _, m := range append([]*Message(nil), node.buffer...) {
			if !m.expired() {
				continue
			}
			if node.sending != nil && node.sending.msg.id == m.id {
				n.abort(node.sending)
			}
			node.remove(m.id)
			n.stats.Expired++
		}
	}

	for _, id := range ids {
		n.nodes[id].router.Tick()
	}

	n.clock.now += n.opts.Step
}

func (n *Network) start(m *Message, from, to *Node, l *link) {
	t := &transfer{msg: m, from: from, to: to, link: l, done: n.clock.now + n.opts.TransferTime}
	from.sending = t
	to.receiving = t
	n.stats.Started++
}

// complete clears both endpoints before the receiving router sees the
// message, so a forward-limit drop on the sender never aborts it
func (n *Network) complete(t *transfer) {
	t.from.sending = nil
	t.to.receiving = nil

	t.to.inbound = t.msg
	t.to.router.MessageTransferred(t.msg.id, t.from.id)
	n.logger.Debug().
		Str("message", string(t.msg.id)).
		Str("from", string(t.from.id)).
		Str("to", string(t.to.id)).
		Msg("Transfer completed")
}

func (n *Network) abort(t *transfer) {
	if t.from.sending == t {
		t.from.sending = nil
	}
	if t.to.receiving == t {
		t.to.receiving = nil
	}
	n.stats.Aborted++
}

func (n *Network) recordDelivery(m *Message) {
	n.stats.Delivered++
	n.latencies = append(n.latencies, n.clock.now-m.created)
	n.hops = append(n.hops, float64(m.hops))
}

func (n *Network) sortedIDs() []models.NodeID {
	ids := make([]models.NodeID, 0, len(n.nodes))
	for id := range n.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
