package resilience

import (
	"context"

	"github.com/sorilab/hanalign/pkg/provider/acoustic"
)

// AcousticFallback implements [acoustic.Provider] with automatic failover
// across multiple acoustic model backends. Each backend has its own circuit
// breaker, so a repeatedly failing primary is bypassed until it recovers.
type AcousticFallback struct {
	group *FallbackGroup[acoustic.Provider]
}

// Compile-time interface assertion.
var _ acoustic.Provider = (*AcousticFallback)(nil)

// NewAcousticFallback creates an [AcousticFallback] with primary as the
// preferred backend.
func NewAcousticFallback(primary acoustic.Provider, primaryName string, cfg FallbackConfig) *AcousticFallback {
	return &AcousticFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional acoustic provider as a fallback.
func (f *AcousticFallback) AddFallback(name string, provider acoustic.Provider) {
	f.group.AddFallback(name, provider)
}

// Predict runs inference against the first healthy backend. If the primary
// fails or its breaker is open, subsequent fallbacks are tried in order.
func (f *AcousticFallback) Predict(ctx context.Context, samples []float32, seq []int) (*acoustic.Prediction, error) {
	return ExecuteWithResult(f.group, func(p acoustic.Provider) (*acoustic.Prediction, error) {
		return p.Predict(ctx, samples, seq)
	})
}

// BreakerStates reports the circuit state of every registered backend,
// keyed by name.
func (f *AcousticFallback) BreakerStates() map[string]State {
	return f.group.States()
}
