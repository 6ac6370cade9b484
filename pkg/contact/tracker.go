// Package contact records link up/down history per neighbour and turns each
// reconnect after a disconnect into one inter-contact time sample.
package contact

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

// Options tunes how pending disconnects are kept
type Options struct {
	// KeepEarliest keeps the first of repeated down events instead of the last.
	KeepEarliest bool
}

// Tracker holds the pending disconnect timestamp of every neighbour that is
// currently out of range. At most one entry exists per neighbour.
type Tracker struct {
	opts       Options
	pending    map[models.NodeID]float64
	duplicates int
}

// NewTracker creates an empty tracker
func NewTracker(opts Options) *Tracker {
	return &Tracker{
		opts:    opts,
		pending: make(map[models.NodeID]float64),
	}
}

// LinkDown records that neighbor went out of range at now. A second down
// without an intervening up overwrites the pending entry unless KeepEarliest
// is set. It reports whether an unmatched entry already existed.
func (t *Tracker) LinkDown(neighbor models.NodeID, now float64) bool {
	_, dup := t.pending[neighbor]
	if dup {
		t.duplicates++
		if t.opts.KeepEarliest {
			return true
		}
	}
	t.pending[neighbor] = now
	return dup
}

// LinkUp consumes the pending entry for neighbor and returns the elapsed
// inter-contact time. ok is false on a first-ever contact.
// The sample is not validated here; a clock going backwards yields a
// non-positive value that estimators reject.
func (t *Tracker) LinkUp(neighbor models.NodeID, now float64) (sample float64, ok bool) {
	down, ok := t.pending[neighbor]
	if !ok {
		return 0, false
	}
	delete(t.pending, neighbor)
	return now - down, true
}

// Pending returns the pending disconnect timestamp for neighbor
func (t *Tracker) Pending(neighbor models.NodeID) (float64, bool) {
	ts, ok := t.pending[neighbor]
	return ts, ok
}

// Len returns the number of neighbours currently out of range
func (t *Tracker) Len() int { return len(t.pending) }

// Duplicates returns how many down events arrived for an already pending neighbour
func (t *Tracker) Duplicates() int { return t.duplicates }

// Observation is the outcome of recording one contact event
type Observation struct {
	Sample    float64
	HasSample bool
	Duplicate bool // down event for an already pending neighbour
}

// Record applies ev as LinkUp or LinkDown
func (t *Tracker) Record(ev models.ContactEvent) Observation {
	if !ev.Up {
		return Observation{Duplicate: t.LinkDown(ev.Neighbor, ev.Timestamp)}
	}
	sample, ok := t.LinkUp(ev.Neighbor, ev.Timestamp)
	return Observation{Sample: sample, HasSample: ok}
}
