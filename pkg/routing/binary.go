package routing

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/contact"
	"github.com/gilchrisn/dtn-routing-service/pkg/estimator"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// Binary estimates its own meeting rate from every inter-contact sample and
// withholds messages whose predicted spread is already oversaturated.
type Binary struct {
	kind         estimator.Kind
	keepEarliest bool
	predictor    replica.Predictor

	tracker     *contact.Tracker
	estimator   estimator.Estimator
	predictions map[models.MessageID]replica.Prediction
}

// NewBinary creates a Binary strategy; estimator.kind selects the lambda
// update (batch mean unless configured otherwise).
func NewBinary(cfg *Config) (*Binary, error) {
	est, err := estimator.New(cfg.EstimatorKind())
	if err != nil {
		return nil, err
	}
	return &Binary{
		kind:         cfg.EstimatorKind(),
		keepEarliest: cfg.KeepFirstDown(),
		predictor:    predictorFor(cfg),
		tracker:      contact.NewTracker(contact.Options{KeepEarliest: cfg.KeepFirstDown()}),
		estimator:    est,
		predictions:  make(map[models.MessageID]replica.Prediction),
	}, nil
}

func (b *Binary) Name() Policy { return PolicyBinary }

func (b *Binary) ConnectionChanged(_ Local, key models.NodeID, up bool, now float64) ContactResult {
	obs := b.tracker.Record(models.ContactEvent{Neighbor: key, Timestamp: now, Up: up})
	if !up {
		return ContactResult{Duplicate: obs.Duplicate}
	}

	res := ContactResult{Sample: obs.Sample, HasSample: obs.HasSample}
	if res.HasSample {
		res.Accepted = b.estimator.Observe(res.Sample)
	}
	res.Lambda, _ = b.estimator.Lambda()
	return res
}

// Prepare recomputes the prediction of every held message. Without a lambda
// the table stays empty and every message is admitted.
func (b *Binary) Prepare(_ Local, msgs []models.Message) {
	for id := range b.predictions {
		delete(b.predictions, id)
	}

	lambda, ok := b.estimator.Lambda()
	if !ok {
		return
	}
	for _, m := range msgs {
		b.predictions[m.ID()] = b.predictor.Predict(lambda, true, m.HopCount(), m.TTL())
	}
}

func (b *Binary) Admit(_ Neighbor, m models.Message) bool {
	p, ok := b.predictions[m.ID()]
	if !ok || !p.Known {
		return true
	}
	return p.Replicas > 0
}

func (b *Binary) Forwarded(models.MessageID, int) bool { return false }

func (b *Binary) Tick(Local) (bool, error) { return false, nil }

func (b *Binary) Lambda(Local) (float64, bool) { return b.estimator.Lambda() }

func (b *Binary) Prediction(id models.MessageID) (replica.Prediction, bool) {
	p, ok := b.predictions[id]
	return p, ok
}

// Pending returns the number of neighbours awaiting a reconnect
func (b *Binary) Pending() int { return b.tracker.Len() }

func (b *Binary) Clone() Strategy {
	est, _ := estimator.New(b.kind)
	return &Binary{
		kind:         b.kind,
		keepEarliest: b.keepEarliest,
		predictor:    b.predictor,
		tracker:      contact.NewTracker(contact.Options{KeepEarliest: b.keepEarliest}),
		estimator:    est,
		predictions:  make(map[models.MessageID]replica.Prediction),
	}
}
