package align

import (
	"fmt"
	"math"
)

// Timebase fixes the conversion between model frames and seconds.
// ScaleFactor compensates for any resampling the acoustic model performs
// internally; 0 means 1.0.
type Timebase struct {
	SampleRate  int
	HopLength   int
	ScaleFactor float64
}

// DefaultTimebase matches the stock alignment model: 44.1 kHz audio with a
// 512-sample hop, about 11.6 ms per frame.
var DefaultTimebase = Timebase{SampleRate: 44100, HopLength: 512, ScaleFactor: 1.0}

// scale returns the effective scale factor.
func (tb Timebase) scale() float64 {
	if tb.ScaleFactor == 0 {
		return 1
	}
	return tb.ScaleFactor
}

// FrameLength returns the duration of one frame in seconds.
func (tb Timebase) FrameLength() float64 {
	return float64(tb.HopLength) / (float64(tb.SampleRate) * tb.scale())
}

// Frames returns the number of model frames covering sampleCount samples,
// rounded the way the model rounds.
func (tb Timebase) Frames(sampleCount int) int {
	return int((float64(sampleCount)*tb.scale() + 0.5) / float64(tb.HopLength))
}

// Validate rejects timebases that cannot produce a positive frame length.
func (tb Timebase) Validate() error {
	if tb.SampleRate <= 0 {
		return fmt.Errorf("timebase: sample rate %d", tb.SampleRate)
	}
	if tb.HopLength <= 0 {
		return fmt.Errorf("timebase: hop length %d", tb.HopLength)
	}
	if tb.ScaleFactor < 0 {
		return fmt.Errorf("timebase: scale factor %g", tb.ScaleFactor)
	}
	return nil
}

// Segment is one aligned phoneme with continuous time bounds in seconds.
// Index is the phoneme's position in the forced sequence, which downstream
// word regrouping maps through the sequence's word-index array. Confidence
// is the mean per-frame path confidence over the segment's frames, or 0
// when the path carries no per-frame confidence.
type Segment struct {
	Phoneme    string
	Index      int
	Start      float64
	End        float64
	Confidence float64
}

// Assemble converts a decoded path into contiguous time segments.
//
// Each event's boundary is refined by half the model's sub-frame edge offset
// at that frame, clamped to half a frame in either direction; one implicit
// final boundary closes the last segment at totalFrames. The result covers
// exactly [0, totalFrames × frameLength]: the first boundary is pinned to 0
// (the path always opens at frame 0) and every segment's end is the next
// segment's start.
//
// When path.Confidence holds one value per frame, each segment's Confidence
// is the mean over the frames it occupies.
//
// phonemes is the forced sequence's symbol list; path states index into it.
func Assemble(path *Path, phonemes []string, edgeOffset []float64, totalFrames int, tb Timebase) ([]Segment, error) {
	if path == nil || len(path.States) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	if len(path.States) != len(path.Frames) {
		return nil, fmt.Errorf("%w: %d states for %d frame events", ErrInvalidInput, len(path.States), len(path.Frames))
	}
	if err := tb.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if totalFrames <= 0 {
		return nil, fmt.Errorf("%w: total frame count %d", ErrInvalidInput, totalFrames)
	}
	if path.Frames[0] != 0 {
		return nil, fmt.Errorf("%w: path starts at frame %d, not 0", ErrInvalidInput, path.Frames[0])
	}

	frameLength := tb.FrameLength()
	n := len(path.States)
	bounds := make([]float64, n+1)
	for j, t := range path.Frames {
		if t < 0 || t >= totalFrames || t >= len(edgeOffset) {
			return nil, fmt.Errorf("%w: event frame %d outside %d frames", ErrInvalidInput, t, totalFrames)
		}
		offset := clamp(edgeOffset[t]/2, -0.5, 0.5)
		bounds[j] = frameLength * (float64(t) + offset)
	}
	bounds[0] = 0
	bounds[n] = frameLength * float64(totalFrames)

	segments := make([]Segment, n)
	for j := 0; j < n; j++ {
		state := path.States[j]
		if state < 0 || state >= len(phonemes) {
			return nil, fmt.Errorf("%w: state %d outside sequence of %d phonemes", ErrInvalidInput, state, len(phonemes))
		}
		segments[j] = Segment{
			Phoneme:    phonemes[state],
			Index:      state,
			Start:      math.Max(0, bounds[j]),
			End:        math.Max(0, bounds[j+1]),
			Confidence: segmentConfidence(path, j, totalFrames),
		}
	}
	return segments, nil
}

// segmentConfidence averages path.Confidence over the frames of event j.
// It returns 0 when the path carries no per-frame confidence for this
// frame count.
func segmentConfidence(path *Path, j, totalFrames int) float64 {
	if len(path.Confidence) != totalFrames {
		return 0
	}
	lo := path.Frames[j]
	hi := totalFrames
	if j+1 < len(path.Frames) {
		hi = path.Frames[j+1]
	}
	if hi <= lo {
		return 0
	}
	sum := 0.0
	for t := lo; t < hi; t++ {
		sum += path.Confidence[t]
	}
	return sum / float64(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
