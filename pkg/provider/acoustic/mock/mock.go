// Package mock provides a test double for the acoustic.Provider interface.
//
// Use Provider to inject canned predictions (or a scripted PredictFunc) and
// inspect the waveforms and id sequences that were submitted for scoring.
//
// Example:
//
//	p := &mock.Provider{Prediction: pred}
//	got, _ := p.Predict(ctx, samples, ids)
//	calls := p.PredictCalls
package mock

import (
	"context"
	"sync"

	"github.com/sorilab/hanalign/pkg/provider/acoustic"
)

// PredictCall records a single invocation of Provider.Predict.
type PredictCall struct {
	// Samples is a copy of the waveform passed to Predict.
	Samples []float32

	// Seq is a copy of the forced id sequence passed to Predict.
	Seq []int
}

// Provider is a mock implementation of acoustic.Provider.
type Provider struct {
	mu sync.Mutex

	// PredictFunc, if non-nil, computes the reply to every Predict call and
	// takes precedence over Prediction and PredictErr.
	PredictFunc func(ctx context.Context, samples []float32, seq []int) (*acoustic.Prediction, error)

	// Prediction is returned by every Predict call when PredictFunc is nil.
	Prediction *acoustic.Prediction

	// PredictErr, if non-nil, is returned by every Predict call when
	// PredictFunc is nil.
	PredictErr error

	// PredictCalls records every call to Predict in order.
	PredictCalls []PredictCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Predict records the call and returns the scripted reply.
func (p *Provider) Predict(ctx context.Context, samples []float32, seq []int) (*acoustic.Prediction, error) {
	p.mu.Lock()
	cs := make([]float32, len(samples))
	copy(cs, samples)
	cq := make([]int, len(seq))
	copy(cq, seq)
	p.PredictCalls = append(p.PredictCalls, PredictCall{Samples: cs, Seq: cq})
	fn := p.PredictFunc
	pred, err := p.Prediction, p.PredictErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples, seq)
	}
	return pred, err
}

// Close records the call.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return nil
}

// Reset clears all recorded call history. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PredictCalls = nil
	p.CloseCallCount = 0
}

// Ensure Provider implements acoustic.Provider at compile time.
var _ acoustic.Provider = (*Provider)(nil)
