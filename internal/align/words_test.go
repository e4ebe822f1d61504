package align_test

import (
	"errors"
	"testing"

	"github.com/sorilab/hanalign/internal/align"
)

// twoWordFixture builds a decoded path and its segments for the forced
// sequence SP n a SP k o SP over the words ["나의", "고향"], where the
// decoder skipped the inter-word boundary (state 3).
func twoWordFixture() (*align.Path, []align.Segment, []string, []int) {
	conf := make([]float64, 12)
	for t := range conf {
		conf[t] = float64(t) / 10
	}
	path := &align.Path{
		States:     []int{0, 1, 2, 4, 5, 6},
		Frames:     []int{0, 2, 4, 6, 8, 10},
		Confidence: conf,
	}
	segments := []align.Segment{
		{Phoneme: "SP", Index: 0, Start: 0.0, End: 0.2},
		{Phoneme: "n", Index: 1, Start: 0.2, End: 0.4},
		{Phoneme: "a", Index: 2, Start: 0.4, End: 0.6},
		{Phoneme: "k", Index: 4, Start: 0.6, End: 0.8},
		{Phoneme: "o", Index: 5, Start: 0.8, End: 1.0},
		{Phoneme: "SP", Index: 6, Start: 1.0, End: 1.2},
	}
	words := []string{"나의", "고향"}
	wordIndex := []int{-1, 0, 0, -1, 1, 1, -1}
	return path, segments, words, wordIndex
}

func TestWords_RegroupsSpans(t *testing.T) {
	path, segments, words, wordIndex := twoWordFixture()

	got, err := align.Words(path, segments, words, wordIndex)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("words: want 2, got %d", len(got))
	}

	if got[0].Text != "나의" || got[0].Index != 0 {
		t.Errorf("word[0]: want 나의/0, got %q/%d", got[0].Text, got[0].Index)
	}
	if got[0].Start != 0.2 || got[0].End != 0.6 {
		t.Errorf("word[0] span: want [0.2, 0.6], got [%v, %v]", got[0].Start, got[0].End)
	}
	// Word 0 occupies frames 2..5: mean of 0.2, 0.3, 0.4, 0.5.
	approx(t, "word[0].Confidence", got[0].Confidence, 0.35)

	if got[1].Text != "고향" || got[1].Index != 1 {
		t.Errorf("word[1]: want 고향/1, got %q/%d", got[1].Text, got[1].Index)
	}
	if got[1].Start != 0.6 || got[1].End != 1.0 {
		t.Errorf("word[1] span: want [0.6, 1.0], got [%v, %v]", got[1].Start, got[1].End)
	}
	// Word 1 occupies frames 6..9: mean of 0.6, 0.7, 0.8, 0.9.
	approx(t, "word[1].Confidence", got[1].Confidence, 0.75)
}

func TestWords_OmitsUndecomposedWord(t *testing.T) {
	// Word 1 produced no phonemes: the sequence holds only words 0 and 2.
	path := &align.Path{
		States:     []int{0, 1, 3},
		Frames:     []int{0, 2, 4},
		Confidence: make([]float64, 6),
	}
	segments := []align.Segment{
		{Phoneme: "SP", Index: 0, Start: 0.0, End: 0.2},
		{Phoneme: "na", Index: 1, Start: 0.2, End: 0.4},
		{Phoneme: "deul", Index: 3, Start: 0.4, End: 0.6},
	}
	words := []string{"나", "x", "들"}
	wordIndex := []int{-1, 0, -1, 2, -1}

	got, err := align.Words(path, segments, words, wordIndex)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("words: want 2, got %d", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 2 {
		t.Errorf("indices: want 0 and 2, got %d and %d", got[0].Index, got[1].Index)
	}
}

func TestWords_LastWordExtendsToFinalFrame(t *testing.T) {
	// No trailing boundary: the last phoneme runs to the end of the audio.
	conf := []float64{0.1, 0.1, 0.1, 0.4, 0.5, 0.6}
	path := &align.Path{
		States:     []int{0, 1},
		Frames:     []int{0, 3},
		Confidence: conf,
	}
	segments := []align.Segment{
		{Phoneme: "SP", Index: 0, Start: 0.0, End: 0.3},
		{Phoneme: "a", Index: 1, Start: 0.3, End: 0.6},
	}

	got, err := align.Words(path, segments, []string{"아"}, []int{-1, 0})
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("words: want 1, got %d", len(got))
	}
	// Frames 3..5: mean of 0.4, 0.5, 0.6.
	approx(t, "confidence", got[0].Confidence, 0.5)
	if got[0].End != 0.6 {
		t.Errorf("End: want 0.6, got %v", got[0].End)
	}
}

func TestWords_NoWords(t *testing.T) {
	path := &align.Path{
		States:     []int{0},
		Frames:     []int{0},
		Confidence: []float64{1},
	}
	segments := []align.Segment{{Phoneme: "SP", Index: 0, Start: 0, End: 0.1}}

	got, err := align.Words(path, segments, nil, []int{-1})
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("want empty slice, got %v", got)
	}
}

func TestWords_InvalidInputs(t *testing.T) {
	valid := &align.Path{
		States:     []int{0, 1},
		Frames:     []int{0, 1},
		Confidence: []float64{0.5, 0.5},
	}
	validSegs := []align.Segment{
		{Phoneme: "SP", Index: 0, Start: 0, End: 0.1},
		{Phoneme: "a", Index: 1, Start: 0.1, End: 0.2},
	}

	tests := []struct {
		name      string
		path      *align.Path
		segments  []align.Segment
		words     []string
		wordIndex []int
	}{
		{
			name:      "nil path",
			path:      nil,
			segments:  validSegs,
			words:     []string{"아"},
			wordIndex: []int{-1, 0},
		},
		{
			name:      "segment event mismatch",
			path:      valid,
			segments:  validSegs[:1],
			words:     []string{"아"},
			wordIndex: []int{-1, 0},
		},
		{
			name: "event frame beyond confidence",
			path: &align.Path{
				States:     []int{0, 1},
				Frames:     []int{0, 5},
				Confidence: []float64{0.5, 0.5},
			},
			segments:  validSegs,
			words:     []string{"아"},
			wordIndex: []int{-1, 0},
		},
		{
			name:      "segment index outside word map",
			path:      valid,
			segments:  validSegs,
			words:     []string{"아"},
			wordIndex: []int{-1},
		},
		{
			name:      "word ordinal outside words",
			path:      valid,
			segments:  validSegs,
			words:     nil,
			wordIndex: []int{-1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := align.Words(tt.path, tt.segments, tt.words, tt.wordIndex)
			if !errors.Is(err, align.ErrInvalidInput) {
				t.Errorf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}
