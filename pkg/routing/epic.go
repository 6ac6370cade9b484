package routing

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/contact"
	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/netstate"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// Epic floods without a forward cap while feeding a run-wide shared store:
// every node folds its inter-contact samples into a recursive mean there,
// and the configured scheduler node historizes replica predictions on each
// of its reconnects. The store is exported once simulated time reaches
// ExportAt.
type Epic struct {
	store        *netstate.Store
	sink         export.Sink
	predictor    replica.Predictor
	scheduler    models.NodeID
	exportAt     float64
	keepEarliest bool

	tracker *contact.Tracker
}

// NewEpic creates an Epic strategy bound to store. A nil sink disables export.
func NewEpic(cfg *Config, store *netstate.Store, sink export.Sink) *Epic {
	return &Epic{
		store:        store,
		sink:         sink,
		predictor:    predictorFor(cfg),
		scheduler:    cfg.Scheduler(),
		exportAt:     cfg.ExportAt(),
		keepEarliest: cfg.KeepFirstDown(),
		tracker:      contact.NewTracker(contact.Options{KeepEarliest: cfg.KeepFirstDown()}),
	}
}

func (e *Epic) Name() Policy { return PolicyEpic }

func (e *Epic) ConnectionChanged(local Local, key models.NodeID, up bool, now float64) ContactResult {
	obs := e.tracker.Record(models.ContactEvent{Neighbor: key, Timestamp: now, Up: up})
	if !up {
		return ContactResult{Duplicate: obs.Duplicate}
	}

	res := ContactResult{Sample: obs.Sample, HasSample: obs.HasSample}
	if res.HasSample {
		res.Lambda, res.Accepted = e.store.Observe(local.ID(), res.Sample)
	}
	if e.IsScheduler(local.ID()) {
		res.Predicted = e.predictAll(local)
	}
	return res
}

// predictAll historizes a prediction for every message the scheduler holds
func (e *Epic) predictAll(local Local) int {
	lambda, ok := e.store.Lambda(local.ID())
	if !ok {
		return 0
	}

	msgs := local.Messages()
	for _, m := range msgs {
		p := e.predictor.Predict(lambda, true, m.HopCount(), m.TTL())
		e.store.RecordReplicas(m.ID(), p.Replicas)
	}
	return len(msgs)
}

func (e *Epic) Prepare(Local, []models.Message) {}

func (e *Epic) Admit(nb Neighbor, m models.Message) bool {
	return !nb.HasForwardRecord(m.ID())
}

func (e *Epic) Forwarded(models.MessageID, int) bool { return false }

// Tick exports the shared series the first time any node reaches exportAt
func (e *Epic) Tick(local Local) (bool, error) {
	if e.sink == nil || local.Now() < e.exportAt {
		return false, nil
	}
	if !e.store.MarkExported() {
		return false, nil
	}
	return true, e.store.Export(e.sink)
}

func (e *Epic) Lambda(local Local) (float64, bool) {
	return e.store.Lambda(local.ID())
}

func (e *Epic) Prediction(id models.MessageID) (replica.Prediction, bool) {
	v, ok := e.store.LatestReplicas(id)
	if !ok {
		return replica.Prediction{}, false
	}
	return replica.Prediction{Replicas: v, Known: true}, true
}

// Pending returns the number of contacts awaiting a reconnect
func (e *Epic) Pending() int { return e.tracker.Len() }

// IsScheduler reports whether id runs the shared prediction pass
func (e *Epic) IsScheduler(id models.NodeID) bool { return id == e.scheduler }

func (e *Epic) Clone() Strategy {
	return &Epic{
		store:        e.store,
		sink:         e.sink,
		predictor:    e.predictor,
		scheduler:    e.scheduler,
		exportAt:     e.exportAt,
		keepEarliest: e.keepEarliest,
		tracker:      contact.NewTracker(contact.Options{KeepEarliest: e.keepEarliest}),
	}
}
