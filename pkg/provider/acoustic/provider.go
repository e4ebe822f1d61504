// Package acoustic defines the contract between the alignment pipeline and
// the neural acoustic model that scores audio frames against the phoneme
// vocabulary.
//
// The model itself (training, loading, batching) lives behind the [Provider]
// interface; implementations are expected to be deterministic scoring
// functions with no side effects visible to the caller. The pipeline treats
// any provider failure as fatal for the current request; retry and failover
// policy belongs to the resilience layer wrapping the provider, never to the
// decoder.
package acoustic

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by [Prediction.Validate] for every shape
// inconsistency in a provider response.
var ErrMalformed = errors.New("malformed acoustic prediction")

// Prediction holds the frame-level model outputs for one audio clip.
//
// Frame t covers the half-open interval [t·frameLength, (t+1)·frameLength) of
// the clip; frameLength is fixed by the model's timebase and is not part of
// the prediction itself.
type Prediction struct {
	// LogProbs is the log-probability of every vocabulary phoneme per frame,
	// indexed [frame][vocabulary id]. All rows share the same width, the
	// vocabulary size.
	LogProbs [][]float64

	// EdgeProb estimates, per frame, the probability that a phoneme boundary
	// falls on that frame. Values lie in (0,1).
	EdgeProb []float64

	// EdgeOffset estimates, per frame, the sub-frame position of the boundary
	// in [-1,1] frame units. Used only for timestamp refinement.
	EdgeOffset []float64

	// Frames is the number of valid frames T.
	Frames int
}

// VocabSize returns the width of the probability rows, 0 when there are none.
func (p *Prediction) VocabSize() int {
	if len(p.LogProbs) == 0 {
		return 0
	}
	return len(p.LogProbs[0])
}

// Validate checks the prediction's internal shape consistency: a positive
// frame count, one probability row per frame with a fixed nonzero width, and
// edge arrays of matching length. All violations wrap [ErrMalformed].
func (p *Prediction) Validate() error {
	if p.Frames <= 0 {
		return fmt.Errorf("%w: frame count %d", ErrMalformed, p.Frames)
	}
	if len(p.LogProbs) != p.Frames {
		return fmt.Errorf("%w: %d probability rows for %d frames", ErrMalformed, len(p.LogProbs), p.Frames)
	}
	width := len(p.LogProbs[0])
	if width == 0 {
		return fmt.Errorf("%w: empty probability rows", ErrMalformed)
	}
	for t, row := range p.LogProbs {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has width %d, row 0 has %d", ErrMalformed, t, len(row), width)
		}
	}
	if len(p.EdgeProb) != p.Frames {
		return fmt.Errorf("%w: %d edge probabilities for %d frames", ErrMalformed, len(p.EdgeProb), p.Frames)
	}
	if len(p.EdgeOffset) != p.Frames {
		return fmt.Errorf("%w: %d edge offsets for %d frames", ErrMalformed, len(p.EdgeOffset), p.Frames)
	}
	return nil
}

// Provider scores audio against the phoneme vocabulary.
//
// Predict runs the model over mono float32 samples at the model's expected
// sample rate and returns frame-level outputs over the full vocabulary. The
// forced id sequence seq is passed through to the model (some models condition
// on it); providers must not reorder or filter the returned probability
// columns based on it, since the decoder performs the column gather itself.
//
// Implementations must be safe for concurrent use; one Predict call per clip.
type Provider interface {
	Predict(ctx context.Context, samples []float32, seq []int) (*Prediction, error)
}
