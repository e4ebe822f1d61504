package align

import "fmt"

// Word is the aligned span of one input word: it runs from the start of the
// word's first phoneme to the end of its last, with a confidence averaged
// over the audio frames the word occupies.
type Word struct {
	Text       string
	Index      int
	Start      float64
	End        float64
	Confidence float64
}

// Words regroups aligned phoneme segments into word spans.
//
// segments must parallel path events one to one, as produced by [Assemble]
// for the same path. words lists the input words in order; wordIndex
// parallels the forced phoneme sequence and maps each position to the
// ordinal of its source word, with -1 for boundary tokens. Boundary segments
// belong to no word and contribute to no span.
//
// Words whose characters produced no phonemes never appear in the path and
// are omitted from the result; Index identifies which input word each span
// covers. Spans come out in word order, which the path's monotonicity makes
// time order as well.
func Words(path *Path, segments []Segment, words []string, wordIndex []int) ([]Word, error) {
	if path == nil || len(path.States) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	if len(segments) != len(path.Frames) {
		return nil, fmt.Errorf("%w: %d segments for %d path events", ErrInvalidInput, len(segments), len(path.Frames))
	}
	totalFrames := len(path.Confidence)
	if last := path.Frames[len(path.Frames)-1]; last >= totalFrames {
		return nil, fmt.Errorf("%w: event frame %d outside %d frames", ErrInvalidInput, last, totalFrames)
	}

	firstSeg := make([]int, len(words))
	lastSeg := make([]int, len(words))
	seen := make([]bool, len(words))
	for j, seg := range segments {
		if seg.Index < 0 || seg.Index >= len(wordIndex) {
			return nil, fmt.Errorf("%w: segment index %d outside word map of %d entries", ErrInvalidInput, seg.Index, len(wordIndex))
		}
		w := wordIndex[seg.Index]
		if w < 0 {
			continue
		}
		if w >= len(words) {
			return nil, fmt.Errorf("%w: word ordinal %d outside %d words", ErrInvalidInput, w, len(words))
		}
		if !seen[w] {
			firstSeg[w], seen[w] = j, true
		}
		lastSeg[w] = j
	}

	endFrame := func(j int) int {
		if j+1 < len(path.Frames) {
			return path.Frames[j+1]
		}
		return totalFrames
	}

	out := make([]Word, 0, len(words))
	for w, text := range words {
		if !seen[w] {
			continue
		}
		lo, hi := path.Frames[firstSeg[w]], endFrame(lastSeg[w])
		if hi <= lo {
			return nil, fmt.Errorf("%w: event frames not increasing at word %d", ErrInvalidInput, w)
		}
		sum := 0.0
		for t := lo; t < hi; t++ {
			sum += path.Confidence[t]
		}
		out = append(out, Word{
			Text:       text,
			Index:      w,
			Start:      segments[firstSeg[w]].Start,
			End:        segments[lastSeg[w]].End,
			Confidence: sum / float64(hi-lo),
		})
	}
	return out, nil
}
