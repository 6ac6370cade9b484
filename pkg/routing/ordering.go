package routing

import (
	"sort"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// Ordering decides the order candidates are handed to the dispatcher
type Ordering string

const (
	// OrderInsertion keeps connection-then-message order
	OrderInsertion Ordering = "insertion"
	// OrderByPrediction sorts by descending replica prediction. Messages
	// without a prediction count as 0. This changes which message the
	// dispatcher picks first and is opt-in.
	OrderByPrediction Ordering = "prediction"
)

// PredictionLookup returns the current prediction for a message
type PredictionLookup func(id models.MessageID) (replica.Prediction, bool)

// Apply reorders candidates in place
func (o Ordering) Apply(candidates []models.Candidate, lookup PredictionLookup) {
	if o != OrderByPrediction || len(candidates) < 2 {
		return
	}

	value := func(c models.Candidate) float64 {
		p, ok := lookup(c.Message.ID())
		if !ok || !p.Known {
			return 0
		}
		return p.Replicas
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return value(candidates[i]) > value(candidates[j])
	})
}
