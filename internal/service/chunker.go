package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/sorilab/hanalign/internal/align"
	"github.com/sorilab/hanalign/internal/observe"
	"github.com/sorilab/hanalign/pkg/audio"
	"github.com/sorilab/hanalign/pkg/g2p"
)

// aligned is the intermediate result of one pipeline pass: phoneme segments
// whose Index fields point into one forced sequence, the word spans, and
// that sequence's word-index array.
type aligned struct {
	segments  []align.Segment
	words     []align.Word
	wordIndex []int
}

// alignText aligns text against the clip, splitting long clips into fixed
// windows when chunking is enabled.
func (a *Aligner) alignText(ctx context.Context, clip *audio.Clip, text string) (*aligned, error) {
	ws := planWindows(len(clip.Samples), a.chunkSeconds, a.timebase)
	if len(ws) <= 1 {
		return a.alignChunk(ctx, clip.Samples, a.converter.Convert(text), 0, 0, 0)
	}
	return a.alignChunked(ctx, clip, text, ws)
}

// alignChunk aligns one window of samples against seq and shifts the result
// onto the global timeline: segment times by the window's start frame,
// sequence indices by seqBase, and word ordinals by wordBase.
func (a *Aligner) alignChunk(ctx context.Context, samples []float32, seq g2p.Sequence, startFrame, seqBase, wordBase int) (*aligned, error) {
	ids, err := a.vocab.Encode(seq.Phonemes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", align.ErrInvalidInput, err)
	}

	pred, err := a.predict(ctx, samples, ids)
	if err != nil {
		return nil, err
	}
	path, err := a.decoder.Decode(pred, ids)
	if err != nil {
		return nil, err
	}
	segments, err := align.Assemble(path, seq.Phonemes, pred.EdgeOffset, pred.Frames, a.timebase)
	if err != nil {
		return nil, err
	}
	words, err := align.Words(path, segments, seq.Words, seq.WordIndex)
	if err != nil {
		return nil, err
	}

	offset := float64(startFrame) * a.timebase.FrameLength()
	for i := range segments {
		segments[i].Index += seqBase
		segments[i].Start += offset
		segments[i].End += offset
	}
	for i := range words {
		words[i].Index += wordBase
		words[i].Start += offset
		words[i].End += offset
	}
	idx := make([]int, len(seq.WordIndex))
	for i, w := range seq.WordIndex {
		if w < 0 {
			idx[i] = -1
			continue
		}
		idx[i] = w + wordBase
	}
	return &aligned{segments: segments, words: words, wordIndex: idx}, nil
}

// alignChunked assigns words to windows by their share of the audio, aligns
// the windows concurrently, and concatenates the shifted results in window
// order. Any window failure fails the whole request.
func (a *Aligner) alignChunked(ctx context.Context, clip *audio.Clip, text string, ws []window) (*aligned, error) {
	byWindow := splitWords(strings.Fields(text), ws)

	// Sequence conversion stays sequential so the per-window index bases are
	// known before the concurrent phase starts.
	seqs := make([]g2p.Sequence, len(ws))
	seqBases := make([]int, len(ws))
	wordBases := make([]int, len(ws))
	seqBase, wordBase := 0, 0
	for i := range ws {
		seqs[i] = a.converter.Convert(strings.Join(byWindow[i], " "))
		seqBases[i] = seqBase
		wordBases[i] = wordBase
		seqBase += len(seqs[i].Phonemes)
		wordBase += len(seqs[i].Words)
	}

	results := make([]*aligned, len(ws))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.chunkConcurrency)
	for i, w := range ws {
		eg.Go(func() error {
			res, err := a.alignChunk(egCtx, clip.Samples[w.start:w.end], seqs[i], w.startFrame, seqBases[i], wordBases[i])
			if err != nil {
				a.metrics.ChunksAligned.Add(egCtx, 1, metric.WithAttributes(observe.Attr("status", "error")))
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			a.metrics.ChunksAligned.Add(egCtx, 1, metric.WithAttributes(observe.Attr("status", "ok")))
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &aligned{}
	for _, r := range results {
		out.segments = append(out.segments, r.segments...)
		out.words = append(out.words, r.words...)
		out.wordIndex = append(out.wordIndex, r.wordIndex...)
	}
	return out, nil
}

// window is one chunk's sample range with its first frame on the global
// grid.
type window struct {
	startFrame int
	start, end int
}

// planWindows splits n samples into fixed windows of chunkSeconds, snapped
// to whole frames so shifted times stay on the common timebase. A plan of
// fewer than two windows means the clip is aligned in one pass.
func planWindows(n int, chunkSeconds float64, tb align.Timebase) []window {
	if chunkSeconds <= 0 || n <= 0 {
		return nil
	}
	framesPerChunk := int(chunkSeconds / tb.FrameLength())
	if framesPerChunk <= 0 {
		return nil
	}
	samplesPerFrame := tb.FrameLength() * float64(tb.SampleRate)
	samplesPerChunk := int(math.Round(float64(framesPerChunk) * samplesPerFrame))
	if samplesPerChunk <= 0 || n <= samplesPerChunk {
		return nil
	}

	count := (n + samplesPerChunk - 1) / samplesPerChunk
	out := make([]window, 0, count)
	for i := 0; i < count; i++ {
		start := i * samplesPerChunk
		out = append(out, window{
			startFrame: i * framesPerChunk,
			start:      start,
			end:        min(start+samplesPerChunk, n),
		})
	}

	// A trailing sliver shorter than one frame cannot carry a prediction;
	// fold it into the previous window.
	last := len(out) - 1
	if last > 0 && out[last].end-out[last].start < int(samplesPerFrame) {
		out[last-1].end = out[last].end
		out = out[:last]
	}
	return out
}

// splitWords assigns words to windows proportionally to each window's share
// of the samples, every window receiving a contiguous run. Cut points are
// cumulative so rounding never drifts.
func splitWords(words []string, ws []window) [][]string {
	total := ws[len(ws)-1].end
	out := make([][]string, len(ws))
	prev := 0
	for i, w := range ws {
		cut := len(words)
		if i < len(ws)-1 {
			cut = int(math.Round(float64(len(words)) * float64(w.end) / float64(total)))
			if cut < prev {
				cut = prev
			}
			if cut > len(words) {
				cut = len(words)
			}
		}
		out[i] = words[prev:cut]
		prev = cut
	}
	return out
}
