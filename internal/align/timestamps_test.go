package align_test

import (
	"errors"
	"math"
	"testing"

	"github.com/sorilab/hanalign/internal/align"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("%s = %.15f, want %.15f", name, got, want)
	}
}

func TestTimebase_FrameLength(t *testing.T) {
	approx(t, "default frame length", align.DefaultTimebase.FrameLength(), 512.0/44100.0)

	// A zero scale factor means no internal resampling.
	tb := align.Timebase{SampleRate: 16000, HopLength: 160}
	approx(t, "unscaled frame length", tb.FrameLength(), 0.01)

	tb.ScaleFactor = 2
	approx(t, "scaled frame length", tb.FrameLength(), 0.005)
}

func TestTimebase_Frames(t *testing.T) {
	cases := []struct {
		samples int
		scale   float64
		want    int
	}{
		{0, 1, 0},
		{511, 1, 0},
		{512, 1, 1},
		{44100, 1, 86},
		{44100, 2, 172},
	}
	for _, tc := range cases {
		tb := align.Timebase{SampleRate: 44100, HopLength: 512, ScaleFactor: tc.scale}
		if got := tb.Frames(tc.samples); got != tc.want {
			t.Errorf("Frames(%d) at scale %g = %d, want %d", tc.samples, tc.scale, got, tc.want)
		}
	}
}

func TestTimebase_Validate(t *testing.T) {
	if err := align.DefaultTimebase.Validate(); err != nil {
		t.Errorf("default timebase rejected: %v", err)
	}

	bad := []align.Timebase{
		{SampleRate: 0, HopLength: 512},
		{SampleRate: -44100, HopLength: 512},
		{SampleRate: 44100, HopLength: 0},
		{SampleRate: 44100, HopLength: 512, ScaleFactor: -1},
	}
	for _, tb := range bad {
		if err := tb.Validate(); err == nil {
			t.Errorf("Validate(%+v) accepted an unusable timebase", tb)
		}
	}
}

func TestAssemble_ContiguousCoverage(t *testing.T) {
	path := &align.Path{States: []int{0, 1}, Frames: []int{0, 2}}
	segs, err := align.Assemble(path, []string{"SP", "a"}, make([]float64, 4), 4, align.DefaultTimebase)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}

	fl := align.DefaultTimebase.FrameLength()
	if segs[0].Phoneme != "SP" || segs[1].Phoneme != "a" {
		t.Errorf("phonemes = %q, %q, want SP, a", segs[0].Phoneme, segs[1].Phoneme)
	}
	if segs[0].Index != 0 || segs[1].Index != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", segs[0].Index, segs[1].Index)
	}
	approx(t, "first start", segs[0].Start, 0)
	approx(t, "boundary", segs[0].End, fl*2)
	approx(t, "second start", segs[1].Start, fl*2)
	approx(t, "final end", segs[1].End, fl*4)
}

func TestAssemble_OffsetRefinesBoundary(t *testing.T) {
	path := &align.Path{States: []int{0, 1}, Frames: []int{0, 2}}
	fl := align.DefaultTimebase.FrameLength()

	cases := []struct {
		name   string
		offset float64
		want   float64
	}{
		{"positive half weight", 0.5, fl * 2.25},
		{"negative half weight", -0.4, fl * 1.8},
		{"clamped high", 3.0, fl * 2.5},
		{"clamped low", -3.0, fl * 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			offsets := make([]float64, 4)
			offsets[2] = tc.offset
			segs, err := align.Assemble(path, []string{"SP", "a"}, offsets, 4, align.DefaultTimebase)
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			approx(t, "refined boundary", segs[0].End, tc.want)
			approx(t, "next start", segs[1].Start, tc.want)
		})
	}
}

func TestAssemble_FirstBoundaryPinnedToZero(t *testing.T) {
	// An offset at frame 0 must not push the first segment's start past zero:
	// the alignment always covers the audio from the very beginning.
	path := &align.Path{States: []int{0, 1}, Frames: []int{0, 2}}
	offsets := []float64{0.9, 0, 0, 0}

	segs, err := align.Assemble(path, []string{"SP", "a"}, offsets, 4, align.DefaultTimebase)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if segs[0].Start != 0 {
		t.Errorf("first start = %g, want exactly 0", segs[0].Start)
	}
}

func TestAssemble_SegmentConfidence(t *testing.T) {
	path := &align.Path{
		States:     []int{0, 1},
		Frames:     []int{0, 2},
		Confidence: []float64{0.2, 0.4, 0.6, 0.8},
	}
	segs, err := align.Assemble(path, []string{"SP", "a"}, make([]float64, 4), 4, align.DefaultTimebase)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	approx(t, "first confidence", segs[0].Confidence, 0.3)
	approx(t, "second confidence", segs[1].Confidence, 0.7)

	// Without per-frame confidence the segments report zero.
	bare := &align.Path{States: []int{0, 1}, Frames: []int{0, 2}}
	segs, err = align.Assemble(bare, []string{"SP", "a"}, make([]float64, 4), 4, align.DefaultTimebase)
	if err != nil {
		t.Fatalf("Assemble bare: %v", err)
	}
	if segs[0].Confidence != 0 || segs[1].Confidence != 0 {
		t.Errorf("bare path confidences = %v, %v, want 0, 0", segs[0].Confidence, segs[1].Confidence)
	}
}

func TestAssemble_SingleSegmentSpansAllAudio(t *testing.T) {
	path := &align.Path{States: []int{0}, Frames: []int{0}}
	segs, err := align.Assemble(path, []string{"SP"}, make([]float64, 5), 5, align.DefaultTimebase)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	approx(t, "start", segs[0].Start, 0)
	approx(t, "end", segs[0].End, align.DefaultTimebase.FrameLength()*5)
}

func TestAssemble_RejectsBadInput(t *testing.T) {
	good := func() *align.Path {
		return &align.Path{States: []int{0, 1}, Frames: []int{0, 2}}
	}
	phonemes := []string{"SP", "a"}
	offsets := make([]float64, 4)

	cases := []struct {
		name     string
		path     *align.Path
		phonemes []string
		offsets  []float64
		frames   int
		tb       align.Timebase
	}{
		{"nil path", nil, phonemes, offsets, 4, align.DefaultTimebase},
		{"empty path", &align.Path{}, phonemes, offsets, 4, align.DefaultTimebase},
		{"length mismatch", &align.Path{States: []int{0}, Frames: []int{0, 2}}, phonemes, offsets, 4, align.DefaultTimebase},
		{"bad timebase", good(), phonemes, offsets, 4, align.Timebase{}},
		{"zero total frames", good(), phonemes, offsets, 0, align.DefaultTimebase},
		{"path not opening at frame 0", &align.Path{States: []int{0}, Frames: []int{1}}, phonemes, offsets, 4, align.DefaultTimebase},
		{"event beyond audio", &align.Path{States: []int{0, 1}, Frames: []int{0, 9}}, phonemes, make([]float64, 10), 4, align.DefaultTimebase},
		{"offsets shorter than path", good(), phonemes, []float64{0}, 4, align.DefaultTimebase},
		{"state outside phoneme list", good(), []string{"SP"}, offsets, 4, align.DefaultTimebase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := align.Assemble(tc.path, tc.phonemes, tc.offsets, tc.frames, tc.tb)
			if !errors.Is(err, align.ErrInvalidInput) {
				t.Errorf("Assemble error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
