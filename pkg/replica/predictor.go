// Package replica predicts how many copies of a message will exist
// network-wide by the time it expires, from an exponential epidemic model.
package replica

import (
	"math"
)

// DefaultCap is the saturation value of a prediction
const DefaultCap = 10.0

// Prediction is the outcome of one replica computation.
// Known is false when no meeting rate is available yet; callers must not
// read Replicas as zero in that case.
type Prediction struct {
	Replicas float64 `json:"replicas"`
	Known    bool    `json:"known"`
	Clamped  bool    `json:"clamped"`
}

// Oversaturated reports a computed prediction floored to zero
func (p Prediction) Oversaturated() bool {
	return p.Known && p.Replicas <= 0
}

// Predictor evaluates replicas = 1 / (1 - exp(-lambda*ttl + hops)) clamped to [0, Cap]
type Predictor struct {
	Cap float64
}

// Default returns a predictor saturating at DefaultCap
func Default() Predictor {
	return Predictor{Cap: DefaultCap}
}

// Predict computes the expected replica count. ttlSeconds below zero is
// treated as zero. When the exponent reaches zero or above the spread is
// already past the model's range: exactly zero saturates at Cap, above zero
// the negative result floors to 0.
func (p Predictor) Predict(lambda float64, known bool, hopCount int, ttlSeconds float64) Prediction {
	if !known || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return Prediction{}
	}
	capValue := p.Cap
	if capValue <= 0 {
		capValue = DefaultCap
	}
	if ttlSeconds < 0 || math.IsNaN(ttlSeconds) {
		ttlSeconds = 0
	}
	if hopCount < 0 {
		hopCount = 0
	}

	denom := 1 - math.Exp(-lambda*ttlSeconds+float64(hopCount))
	if denom == 0 {
		return Prediction{Replicas: capValue, Known: true, Clamped: true}
	}

	replicas := 1 / denom
	switch {
	case math.IsNaN(replicas):
		return Prediction{}
	case replicas > capValue:
		return Prediction{Replicas: capValue, Known: true, Clamped: true}
	case replicas <= 0:
		return Prediction{Replicas: 0, Known: true, Clamped: true}
	}
	return Prediction{Replicas: replicas, Known: true}
}

// MaxReplicas is the linear upper estimate ttl*lambda. Used for export and
// diagnostics only, never for forwarding decisions.
func MaxReplicas(lambda, ttlSeconds float64) float64 {
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}
	return ttlSeconds * lambda
}
