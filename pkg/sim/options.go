// Package sim is an in-memory, trace-driven host environment for the
// routing core: a simulated clock, links kept in an undirected graph,
// fixed-duration transfers and FIFO message buffers.
package sim

// Options configures a Network.
//
// Step(s): simulated seconds per tick
// TransferTime(s): time a single message transfer occupies both endpoints
type Options struct {
	Step           float64
	TransferTime   float64
	BufferSize     int     // messages per node, oldest dropped on overflow
	DeliveredCache uint    // message ids remembered per destination
	DefaultTTL     float64 // seconds, for messages created without one
	AutoAddNodes   bool    // trace events may introduce new nodes
}

func DefaultOptions() *Options {
	return &Options{
		Step:           1,
		TransferTime:   1,
		BufferSize:     100,
		DeliveredCache: 1024,
		DefaultTTL:     3600,
		AutoAddNodes:   true,
	}
}
