package routing

import (
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// BinaryV1 floods a message only to neighbours that have not relayed it
// themselves and drops the local copy after ForwardCap relays.
// It keeps no contact history.
type BinaryV1 struct {
	forwardCap int
}

// NewBinaryV1 creates a BinaryV1 strategy
func NewBinaryV1(cfg *Config) *BinaryV1 {
	limit := cfg.ForwardCap()
	if limit <= 0 {
		limit = 2
	}
	return &BinaryV1{forwardCap: limit}
}

func (v *BinaryV1) Name() Policy { return PolicyBinaryV1 }

func (v *BinaryV1) ConnectionChanged(Local, models.NodeID, bool, float64) ContactResult {
	return ContactResult{}
}

func (v *BinaryV1) Prepare(Local, []models.Message) {}

func (v *BinaryV1) Admit(nb Neighbor, m models.Message) bool {
	return !nb.HasForwardRecord(m.ID())
}

func (v *BinaryV1) Forwarded(_ models.MessageID, count int) bool {
	return count >= v.forwardCap
}

func (v *BinaryV1) Tick(Local) (bool, error) { return false, nil }

func (v *BinaryV1) Lambda(Local) (float64, bool) { return 0, false }

func (v *BinaryV1) Prediction(models.MessageID) (replica.Prediction, bool) {
	return replica.Prediction{}, false
}

// ForwardCap returns the relay count at which the local copy is dropped
func (v *BinaryV1) ForwardCap() int { return v.forwardCap }

func (v *BinaryV1) Clone() Strategy {
	return &BinaryV1{forwardCap: v.forwardCap}
}
