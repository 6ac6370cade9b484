// Package estimator turns inter-contact time samples into a meeting rate
// (lambda, contacts per simulated second).
package estimator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Kind selects an update strategy
type Kind string

const (
	KindBatch     Kind = "batch"
	KindRecursive Kind = "recursive"
)

// ErrUnknownKind is returned by New for an unsupported strategy name
var ErrUnknownKind = errors.New("unknown estimator kind")

// Estimator maintains a running meeting-rate estimate
type Estimator interface {
	// Observe folds one sample in. Non-positive or non-finite samples are
	// rejected and leave the estimate untouched.
	Observe(sample float64) bool
	// Lambda is undefined (ok=false) until the first accepted sample.
	Lambda() (lambda float64, ok bool)
	Count() int
	Kind() Kind
}

// New returns a fresh estimator of the given kind
func New(kind Kind) (Estimator, error) {
	switch kind {
	case KindBatch:
		return NewBatchMean(), nil
	case KindRecursive:
		return NewRecursiveMean(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func validSample(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}

// BatchMean keeps every sample and recomputes lambda = count / sum on each
// observation. Recompute only happens on reconnects, not per tick.
type BatchMean struct {
	samples []float64
	lambda  float64
}

// NewBatchMean creates an empty batch-mean estimator
func NewBatchMean() *BatchMean {
	return &BatchMean{samples: make([]float64, 0, 8)}
}

func (b *BatchMean) Observe(sample float64) bool {
	if !validSample(sample) {
		return false
	}
	b.samples = append(b.samples, sample)
	b.lambda = 1 / stat.Mean(b.samples, nil)
	return true
}

func (b *BatchMean) Lambda() (float64, bool) {
	if len(b.samples) == 0 {
		return 0, false
	}
	return b.lambda, true
}

func (b *BatchMean) Count() int { return len(b.samples) }
func (b *BatchMean) Kind() Kind { return KindBatch }

// Samples returns a copy of the observed samples in arrival order
func (b *BatchMean) Samples() []float64 {
	out := make([]float64, len(b.samples))
	copy(out, b.samples)
	return out
}

// RecursiveMean folds each sample into (count, rate) without keeping history:
//
//	rate' = (n+1) / (n/rate + s)
//
// which equals the batch estimate over the same samples.
type RecursiveMean struct {
	count int
	rate  float64
}

// NewRecursiveMean creates an empty recursive-mean estimator
func NewRecursiveMean() *RecursiveMean {
	return &RecursiveMean{}
}

func (r *RecursiveMean) Observe(sample float64) bool {
	if !validSample(sample) {
		return false
	}
	if r.count == 0 {
		r.rate = 1 / sample
	} else {
		n := float64(r.count)
		r.rate = (n + 1) / (n/r.rate + sample)
	}
	r.count++
	return true
}

func (r *RecursiveMean) Lambda() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.rate, true
}

func (r *RecursiveMean) Count() int { return r.count }
func (r *RecursiveMean) Kind() Kind { return KindRecursive }
