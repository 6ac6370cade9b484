// Package netstate holds the meeting-rate estimates and replica predictions
// shared by every node of one simulation run. A Store is created once per
// run and injected into each router that needs it; it is safe for
// concurrent use.
package netstate

import (
	"sync"

	"github.com/gilchrisn/dtn-routing-service/pkg/estimator"
	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
)

const (
	LambdaSeriesName  = "lambdas"
	ReplicaSeriesName = "replicas"
)

// Store is the run-scoped shared estimator and prediction table
type Store struct {
	mu         sync.RWMutex
	estimators map[models.NodeID]*estimator.RecursiveMean
	lambdas    export.Series // node id -> lambda after every accepted sample
	replicas   export.Series // message id -> every prediction made
	exported   bool
}

// Snapshot is a point-in-time copy of the latest values
type Snapshot struct {
	Lambdas  map[string]float64 `json:"lambdas"`
	Replicas map[string]float64 `json:"replicas"`
	Samples  map[string]int     `json:"samples"`
	Exported bool               `json:"exported"`
}

// New creates an empty store
func New() *Store {
	return &Store{
		estimators: make(map[models.NodeID]*estimator.RecursiveMean),
		lambdas:    make(export.Series),
		replicas:   make(export.Series),
	}
}

// Observe folds an inter-contact sample into node's estimate and returns
// the updated lambda. Rejected samples leave the estimate untouched and
// report ok=false.
func (s *Store) Observe(node models.NodeID, sample float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	est, exists := s.estimators[node]
	if !exists {
		est = estimator.NewRecursiveMean()
	}
	if !est.Observe(sample) {
		return 0, false
	}
	s.estimators[node] = est

	lambda, _ := est.Lambda()
	key := string(node)
	s.lambdas[key] = append(s.lambdas[key], lambda)
	return lambda, true
}

// Lambda returns node's current estimate
func (s *Store) Lambda(node models.NodeID) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	est, ok := s.estimators[node]
	if !ok {
		return 0, false
	}
	return est.Lambda()
}

// Count returns how many samples node has contributed
func (s *Store) Count(node models.NodeID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if est, ok := s.estimators[node]; ok {
		return est.Count()
	}
	return 0
}

// RecordReplicas appends a prediction to id's history
func (s *Store) RecordReplicas(id models.MessageID, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(id)
	s.replicas[key] = append(s.replicas[key], value)
}

// LatestReplicas returns the newest prediction recorded for id
func (s *Store) LatestReplicas(id models.MessageID) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := s.replicas[string(id)]
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// LambdaSeries returns a deep copy of the lambda history
func (s *Store) LambdaSeries() export.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lambdas.Clone()
}

// ReplicaSeries returns a deep copy of the prediction history
func (s *Store) ReplicaSeries() export.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replicas.Clone()
}

// MarkExported returns true exactly once per store
func (s *Store) MarkExported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exported {
		return false
	}
	s.exported = true
	return true
}

// Snapshot returns the latest lambda and prediction per key
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make(map[string]int, len(s.estimators))
	for node, est := range s.estimators {
		samples[string(node)] = est.Count()
	}
	return Snapshot{
		Lambdas:  s.lambdas.Last(),
		Replicas: s.replicas.Last(),
		Samples:  samples,
		Exported: s.exported,
	}
}

// Export writes both series through sink
func (s *Store) Export(sink export.Sink) error {
	if err := sink.Export(LambdaSeriesName, s.LambdaSeries()); err != nil {
		return err
	}
	return sink.Export(ReplicaSeriesName, s.ReplicaSeries())
}
