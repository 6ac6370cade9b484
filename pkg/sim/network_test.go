package sim

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/netstate"
	"github.com/gilchrisn/dtn-routing-service/pkg/routing"
)

func quietConfig(policy routing.Policy) *routing.Config {
	cfg := routing.NewConfig()
	cfg.Set("logging.level", "disabled")
	cfg.Set("routing.policy", string(policy))
	return cfg
}

func newTestNetwork(t *testing.T, cfg *routing.Config, deps routing.Dependencies, opts *Options) *Network {
	t.Helper()
	s, err := routing.NewStrategy(cfg, deps)
	require.NoError(t, err)
	return NewNetwork(opts, routing.NewRouter(nil, s, cfg), zerolog.Nop())
}

func mustTrace(t *testing.T, text string) []Event {
	t.Helper()
	events, err := ReadTrace(strings.NewReader(text))
	require.NoError(t, err)
	return events
}

type captureSink struct {
	names  []string
	series map[string]export.Series
}

func (c *captureSink) Export(name string, s export.Series) error {
	if c.series == nil {
		c.series = make(map[string]export.Series)
	}
	c.names = append(c.names, name)
	c.series[name] = s.Clone()
	return nil
}

func TestMeetingRateFromTrace(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, nil)
	events := mustTrace(t, `
# contact, gap of 20s, contact
0 CONN A B up
10 CONN A B down
30 CONN A B up
`)
	require.NoError(t, net.Run(events, 31))

	for _, id := range []models.NodeID{"A", "B"} {
		node, ok := net.Node(id)
		require.True(t, ok)
		lambda, ok := node.Router().Lambda()
		require.True(t, ok)
		require.InDelta(t, 0.05, lambda, 1e-12)
	}
}

func TestDirectDelivery(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, nil)
	require.NoError(t, net.LinkUp("A", "B"))
	id, err := net.CreateMessage("A", "B", 600)
	require.NoError(t, err)

	require.NoError(t, net.Run(nil, 5))

	stats := net.Stats()
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 1, stats.Delivered)
	require.Equal(t, 0, stats.Relayed)
	require.Equal(t, 1.0, stats.DeliveryRatio)
	require.Equal(t, 1.0, stats.LatencyMean)

	b, _ := net.Node("B")
	require.True(t, b.HasMessage(id), "delivered ids are remembered")
	require.Empty(t, b.Messages(), "destination does not buffer")
}

func TestMultiHopRelay(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, nil)
	events := mustTrace(t, `
0 CONN A B up
0 CONN B C up
0 C A C 600
`)
	require.NoError(t, net.Run(events, 10))

	stats := net.Stats()
	require.Equal(t, 1, stats.Delivered)
	require.Equal(t, 1, stats.Relayed)
	require.Equal(t, 2.0, stats.HopMean)
	require.Equal(t, 2.0, stats.LatencyMean)
}

func TestBinaryV1DropsAfterTwoRelays(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinaryV1), routing.Dependencies{}, nil)
	events := mustTrace(t, `
0 CONN A B up
0 CONN A C up
0 CONN A D up
0 C A Z 600
`)
	require.NoError(t, net.Run(events, 6))

	a, _ := net.Node("A")
	b, _ := net.Node("B")
	c, _ := net.Node("C")
	d, _ := net.Node("D")
	require.Empty(t, a.Messages())
	require.Len(t, b.Messages(), 1)
	require.Len(t, c.Messages(), 1)
	require.Empty(t, d.Messages())

	stats := net.Stats()
	require.Equal(t, 2, stats.Relayed)
	require.Equal(t, 1, stats.ForwardLimitDrops)

	id := b.Messages()[0].ID()
	require.Equal(t, 2, a.Router().ForwardCount(id))
	require.Equal(t, 1, b.Messages()[0].HopCount())
}

func TestLinkDownAbortsTransfer(t *testing.T) {
	opts := DefaultOptions()
	opts.TransferTime = 5
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, opts)

	require.NoError(t, net.LinkUp("A", "B"))
	_, err := net.CreateMessage("A", "B", 600)
	require.NoError(t, err)
	net.Step()

	a, _ := net.Node("A")
	b, _ := net.Node("B")
	require.True(t, a.IsTransferring())
	require.True(t, b.IsTransferring())

	require.NoError(t, net.LinkDown("A", "B"))
	require.False(t, a.IsTransferring())
	require.False(t, b.IsTransferring())
	require.Len(t, a.Messages(), 1)

	stats := net.Stats()
	require.Equal(t, 1, stats.Started)
	require.Equal(t, 1, stats.Aborted)
	require.Equal(t, 0, stats.Delivered)
}

func TestMessagesExpire(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, nil)
	_, err := net.CreateMessage("A", "B", 2)
	require.NoError(t, err)
	require.NoError(t, net.Run(nil, 3))

	a, _ := net.Node("A")
	require.Empty(t, a.Messages())
	require.Equal(t, 1, net.Stats().Expired)
}

func TestBufferDropsOldest(t *testing.T) {
	opts := DefaultOptions()
	opts.BufferSize = 2
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, opts)

	first, err := net.CreateMessage("A", "B", 0)
	require.NoError(t, err)
	_, err = net.CreateMessage("A", "B", 0)
	require.NoError(t, err)
	_, err = net.CreateMessage("A", "B", 0)
	require.NoError(t, err)

	a, _ := net.Node("A")
	require.Len(t, a.Messages(), 2)
	require.False(t, a.HasMessage(first))
	require.Equal(t, 1, net.Stats().Dropped)
	require.Equal(t, 3600.0, a.Messages()[0].TTL(), "default ttl applied")
}

func TestNetworkErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.AutoAddNodes = false
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, opts)

	require.ErrorIs(t, net.LinkUp("A", "B"), ErrUnknownNode)
	net.AddNode("A")
	net.AddNode("B")
	require.NoError(t, net.LinkUp("A", "B"))
	require.NoError(t, net.LinkUp("A", "B"), "repeated up is ignored")
	require.ErrorIs(t, net.LinkUp("A", "A"), ErrSelfLink)

	_, err := net.CreateMessage("A", "A", 10)
	require.ErrorIs(t, err, ErrSelfAddressed)
	_, err = net.NodeSnapshot("Q")
	require.ErrorIs(t, err, ErrUnknownNode)

	err = net.Run([]Event{{Time: 0, Kind: EventLinkUp, A: "A", B: "Q"}}, 1)
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestDegreeFollowsLinks(t *testing.T) {
	net := newTestNetwork(t, quietConfig(routing.PolicyBinary), routing.Dependencies{}, nil)
	require.NoError(t, net.LinkUp("A", "B"))
	require.NoError(t, net.LinkUp("A", "C"))
	require.Equal(t, 2, net.Degree("A"))
	require.Equal(t, 1, net.Degree("B"))

	require.NoError(t, net.LinkDown("A", "B"))
	require.Equal(t, 1, net.Degree("A"))
	require.Equal(t, 0, net.Degree("B"))
	require.Equal(t, 0, net.Degree("nobody"))

	a, _ := net.Node("A")
	conns := a.Connections()
	require.Len(t, conns, 1)
	require.Equal(t, models.NodeID("C"), conns[0].OtherEndpoint("A"))
}

func TestEpicRunExportsSharedState(t *testing.T) {
	cfg := quietConfig(routing.PolicyEpic)
	cfg.Set("epic.scheduler", "A")
	cfg.Set("epic.export_at", 35.0)
	store := netstate.New()
	sink := &captureSink{}
	net := newTestNetwork(t, cfg, routing.Dependencies{Store: store, Sink: sink}, nil)

	events := mustTrace(t, `
0 CONN A B up
0 C A Z 3600
10 CONN A B down
30 CONN A B up
`)
	require.NoError(t, net.Run(events, 40))

	require.Equal(t, []string{netstate.LambdaSeriesName, netstate.ReplicaSeriesName}, sink.names)
	lambdas := sink.series[netstate.LambdaSeriesName]
	require.InDelta(t, 0.05, lambdas["A"][0], 1e-12)
	require.InDelta(t, 0.05, lambdas["B"][0], 1e-12)

	a, _ := net.Node("A")
	id := a.Messages()[0].ID()
	replicas, ok := store.LatestReplicas(id)
	require.True(t, ok)
	require.Greater(t, replicas, 0.0)

	snaps := net.Snapshots()
	require.Len(t, snaps, 3)
	require.Equal(t, models.NodeID("A"), snaps[0].ID)
	require.NotNil(t, snaps[0].Lambda)
	require.Equal(t, 1, snaps[0].ForwardCounts[id])
}
