package routing

import (
	"errors"
	"fmt"

	"github.com/gilchrisn/dtn-routing-service/pkg/export"
	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/netstate"
	"github.com/gilchrisn/dtn-routing-service/pkg/replica"
)

// Policy names one of the forwarding variants
type Policy string

const (
	PolicyBinary   Policy = "binary"
	PolicyBinaryV1 Policy = "binaryv1"
	PolicyEpic     Policy = "epic"
)

var (
	ErrUnknownPolicy = errors.New("unknown routing policy")
	ErrMissingStore  = errors.New("epic policy requires a shared store")
)

// ContactResult describes what one connection change did to the estimator
type ContactResult struct {
	Sample    float64 // inter-contact time, valid when HasSample
	HasSample bool
	Accepted  bool // sample folded into lambda
	Lambda    float64
	Duplicate bool // down event for an already pending neighbour
	Predicted int  // predictions made by the scheduler pass
}

// Strategy is the variant-specific part of a Router. A strategy instance
// belongs to exactly one router; Clone returns an instance with the same
// configuration and fresh runtime state.
type Strategy interface {
	Name() Policy
	ConnectionChanged(local Local, key models.NodeID, up bool, now float64) ContactResult
	// Prepare runs once per candidate selection before any Admit call
	Prepare(local Local, msgs []models.Message)
	Admit(nb Neighbor, m models.Message) bool
	// Forwarded is told the sender-side relay count of id; drop asks the
	// router to delete the local copy.
	Forwarded(id models.MessageID, count int) (drop bool)
	// Tick runs on every router tick regardless of transfer state
	Tick(local Local) (exported bool, err error)
	Lambda(local Local) (float64, bool)
	Prediction(id models.MessageID) (replica.Prediction, bool)
	Clone() Strategy
}

// Dependencies are the run-scoped collaborators some strategies need
type Dependencies struct {
	Store *netstate.Store // required by Epic
	Sink  export.Sink     // optional; nil disables Epic export
}

// NewStrategy builds the strategy named by cfg's routing.policy
func NewStrategy(cfg *Config, deps Dependencies) (Strategy, error) {
	switch cfg.Policy() {
	case PolicyBinary:
		return NewBinary(cfg)
	case PolicyBinaryV1:
		return NewBinaryV1(cfg), nil
	case PolicyEpic:
		if deps.Store == nil {
			return nil, ErrMissingStore
		}
		return NewEpic(cfg, deps.Store, deps.Sink), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.Policy())
	}
}
