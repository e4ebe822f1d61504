// Package align implements forced alignment of a phoneme sequence to audio
// frames: an exact Viterbi-style decoder over frame-level phoneme
// probabilities, and the timestamp assembly that turns the decoded frame
// events into contiguous time segments.
//
// The decoder is pure computation. It performs no I/O, owns no shared state,
// and allocates only per-call tables, so independent requests may decode
// concurrently without locking.
package align

import (
	"fmt"
	"math"
	"slices"

	"github.com/sorilab/hanalign/pkg/provider/acoustic"
)

// transition identifies how a lattice cell was entered. The numeric value
// doubles as the backward state-delta, and the declaration order is the fixed
// tie-break priority: on equal scores the lowest code wins.
type transition int8

const (
	transNone    transition = -1 // no incoming transition recorded
	transStay    transition = 0  // remain in the same state
	transAdvance transition = 1  // enter from the previous state
	transSkip    transition = 2  // enter from two states back, over a boundary
)

// logZero is the log-domain impossible score.
var logZero = math.Inf(-1)

// edgeEpsilon guards the boundary-probability logs against zero.
const edgeEpsilon = 1e-6

// Path is a decoded alignment. States and Frames run in parallel and in
// chronological order: States[j] is the position in the forced sequence whose
// segment begins at frame Frames[j]. Frames[0] is always 0. Confidence holds
// one relative per-frame likelihood per audio frame, derived from the
// first difference of the cumulative path score.
type Path struct {
	States     []int
	Frames     []int
	Confidence []float64
}

// Decoder finds the optimal monotonic assignment of audio frames to the
// positions of a forced phoneme sequence. It is stateless apart from the
// boundary id and safe for concurrent use.
type Decoder struct {
	boundaryID int
}

// NewDecoder returns a Decoder treating boundaryID as the vocabulary id of
// the silence token. Boundary states are the only ones a path may skip and
// the only ones excluded from the duration bonus.
func NewDecoder(boundaryID int) *Decoder {
	return &Decoder{boundaryID: boundaryID}
}

// Decode aligns the forced id sequence seq to the prediction's frames.
//
// The state space is the S positions of seq, not the vocabulary. Each frame
// scores three transitions per state (stay, advance from the previous state,
// skip over an intervening boundary state) and keeps the best, with ties
// resolved toward the lowest transition code. Advancing into a state earns a
// bonus proportional to the best emission the source state has seen since it
// was entered, scaled by T/S so the incentive is independent of sequence
// length; boundary states never accrue that bonus.
//
// The returned path is strictly ordered, covers every frame, and always
// starts at frame 0. Undecodable inputs (including audio with far fewer
// frames than states) return ErrInvariant; nothing is ever approximated.
func (d *Decoder) Decode(pred *acoustic.Prediction, seq []int) (*Path, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: empty phoneme sequence", ErrInvalidInput)
	}
	if pred == nil {
		return nil, fmt.Errorf("%w: nil prediction", ErrInvalidInput)
	}
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	vocab := pred.VocabSize()
	for i, id := range seq {
		if id < 0 || id >= vocab {
			return nil, fmt.Errorf("%w: phoneme id %d at position %d outside vocabulary of size %d",
				ErrInvalidInput, id, i, vocab)
		}
	}

	frames := pred.Frames
	states := len(seq)

	// Gather the full-vocabulary log-probabilities down to the forced
	// sequence: probLog[t*states+i] scores state i (column seq[i]) at frame t.
	probLog := make([]float64, frames*states)
	for t, row := range pred.LogProbs {
		base := t * states
		for i, id := range seq {
			probLog[base+i] = row[id]
		}
	}

	edgeLog := make([]float64, frames)
	notEdgeLog := make([]float64, frames)
	for t, p := range pred.EdgeProb {
		edgeLog[t] = math.Log(p + edgeEpsilon)
		notEdgeLog[t] = math.Log(1 - p + edgeEpsilon)
	}

	// Flat T×S lattices, cell (t,i) at t*states+i.
	dp := make([]float64, frames*states)
	bt := make([]transition, frames*states)
	for i := range dp {
		dp[i] = logZero
		bt[i] = transNone
	}

	// Running best emission per state since it was last entered. Boundary
	// states are pinned to 0 at the end of every frame so silence never
	// earns a duration bonus.
	runMax := make([]float64, states)
	for i := range runMax {
		runMax[i] = logZero
	}

	dp[0] = probLog[0]
	runMax[0] = probLog[0]
	seedTwo := states >= 2 && seq[0] == d.boundaryID
	if seedTwo {
		dp[1] = probLog[1]
		runMax[1] = probLog[1]
	}

	ratio := float64(frames) / float64(states)

	for t := 1; t < frames; t++ {
		row := t * states
		prev := row - states

		for i := 0; i < states; i++ {
			best := dp[prev+i] + probLog[row+i] + notEdgeLog[t]
			code := transStay
			if i >= 1 {
				adv := dp[prev+i-1] + probLog[row+i] + edgeLog[t] + runMax[i-1]*ratio
				if adv > best {
					best, code = adv, transAdvance
				}
			}
			if i >= 2 && seq[i-1] == d.boundaryID {
				skip := dp[prev+i-2] + probLog[row+i] + edgeLog[t] + runMax[i-2]*ratio
				if skip > best {
					best, code = skip, transSkip
				}
			}
			dp[row+i] = best
			bt[row+i] = code
		}

		// Bookkeeping runs after the whole frame is scored so every state
		// sees the pre-frame runMax values above.
		for i := 0; i < states; i++ {
			switch bt[row+i] {
			case transStay:
				if probLog[row+i] > runMax[i] {
					runMax[i] = probLog[row+i]
				}
			case transAdvance, transSkip:
				runMax[i] = probLog[row+i]
			}
		}
		for i := 0; i < states; i++ {
			if seq[i] == d.boundaryID {
				runMax[i] = 0
			}
		}
	}

	// The path must end on the final state, except that a trailing boundary
	// the audio never reaches is absorbed into the state before it.
	lastRow := (frames - 1) * states
	terminal := states - 1
	if states >= 2 && seq[states-1] == d.boundaryID && dp[lastRow+states-2] > dp[lastRow+states-1] {
		terminal = states - 2
	}

	return d.walk(dp, bt, frames, states, terminal, seq)
}

// walk backtracks from (frames-1, terminal) to frame 0, emitting one event
// per state entry and collecting the cumulative score along the path.
func (d *Decoder) walk(dp []float64, bt []transition, frames, states, terminal int, seq []int) (*Path, error) {
	revStates := make([]int, 0, states)
	revFrames := make([]int, 0, states)
	pathScore := make([]float64, 0, frames)

	s := terminal
	for t := frames - 1; t > 0; t-- {
		idx := t*states + s
		pathScore = append(pathScore, dp[idx])
		switch c := bt[idx]; c {
		case transStay:
		case transAdvance, transSkip:
			revStates = append(revStates, s)
			revFrames = append(revFrames, t)
			s -= int(c)
			if s < 0 {
				return nil, fmt.Errorf("%w: path stepped below state 0 at frame %d", ErrInvariant, t)
			}
		default:
			return nil, fmt.Errorf("%w: no transition recorded at frame %d state %d", ErrInvariant, t, s)
		}
	}

	// Frame 0 always opens the landing state's segment, and that state must
	// be one the initialization seeded; anything else means the lattice had
	// no complete path for this input.
	pathScore = append(pathScore, dp[s])
	revStates = append(revStates, s)
	revFrames = append(revFrames, 0)
	if !d.isSeed(s, seq, states) {
		return nil, fmt.Errorf("%w: backward pass landed on unseeded state %d of %d", ErrInvariant, s, states)
	}

	slices.Reverse(revStates)
	slices.Reverse(revFrames)
	slices.Reverse(pathScore)

	confidence := make([]float64, len(pathScore))
	prev := 0.0
	for t, score := range pathScore {
		confidence[t] = math.Exp(score - prev)
		prev = score
	}

	return &Path{States: revStates, Frames: revFrames, Confidence: confidence}, nil
}

// isSeed reports whether state s received an initial score at frame 0.
func (d *Decoder) isSeed(s int, seq []int, states int) bool {
	if s == 0 {
		return true
	}
	return s == 1 && states >= 2 && seq[0] == d.boundaryID
}
