// Package service orchestrates the full alignment pipeline: lyric text to a
// forced phoneme sequence, audio to frame probabilities, Viterbi decode,
// timestamp assembly, word regrouping, the optional transcription
// cross-check, and best-effort persistence.
//
// The [Aligner] is the worker's single entry point; the HTTP layer stays a
// thin translation over it. Requests with no text are transcribed first when
// a transcriber is configured, and the resulting text flows through the same
// pipeline as user-supplied text.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sorilab/hanalign/internal/align"
	"github.com/sorilab/hanalign/internal/crosscheck"
	"github.com/sorilab/hanalign/internal/export"
	"github.com/sorilab/hanalign/internal/observe"
	"github.com/sorilab/hanalign/internal/store"
	"github.com/sorilab/hanalign/pkg/audio"
	"github.com/sorilab/hanalign/pkg/g2p"
	"github.com/sorilab/hanalign/pkg/phoneme"
	"github.com/sorilab/hanalign/pkg/provider/acoustic"
	"github.com/sorilab/hanalign/pkg/provider/transcriber"
)

const (
	// defaultChunkConcurrency caps concurrent chunk alignments when chunking
	// is enabled without an explicit limit.
	defaultChunkConcurrency = 2

	// defaultTranscriberRate matches whisper.cpp's expected input rate.
	defaultTranscriberRate = 16000
)

var (
	// ErrNoText marks a request that carried no text while no transcriber is
	// configured to supply one.
	ErrNoText = errors.New("no text supplied and no transcriber configured")

	// ErrNoAudio marks a request whose clip is missing or empty.
	ErrNoAudio = errors.New("no audio samples")
)

// Request is one alignment job.
type Request struct {
	// Clip is the decoded audio.
	Clip *audio.Clip

	// Text is the known lyric text. Empty means the transcriber supplies it.
	Text string

	// Filename is recorded with the persisted job; informational only.
	Filename string
}

// Aligner runs alignment requests against an acoustic provider. It is safe
// for concurrent use; every request owns its own pipeline state.
type Aligner struct {
	provider    acoustic.Provider
	transcriber transcriber.Provider
	transcRate  int
	jobs        store.JobStore
	converter   g2p.Converter
	vocab       *phoneme.Vocabulary
	checker     *crosscheck.Checker
	decoder     *align.Decoder
	timebase    align.Timebase
	metrics     *observe.Metrics

	chunkSeconds     float64
	chunkConcurrency int
}

// Option is a functional option for configuring an Aligner during
// construction.
type Option func(*Aligner)

// WithTranscriber configures the optional lyric transcriber, enabling both
// text extraction for text-less requests and the agreement cross-check.
func WithTranscriber(p transcriber.Provider) Option {
	return func(a *Aligner) { a.transcriber = p }
}

// WithTranscriberRate sets the sample rate the transcriber expects clips at.
// Default is 16 kHz, whisper.cpp's input rate.
func WithTranscriberRate(rate int) Option {
	return func(a *Aligner) { a.transcRate = rate }
}

// WithStore configures best-effort job persistence. A store failure is
// logged and counted, never surfaced to the caller.
func WithStore(s store.JobStore) Option {
	return func(a *Aligner) { a.jobs = s }
}

// WithTimebase overrides the model frame grid. Default is
// [align.DefaultTimebase].
func WithTimebase(tb align.Timebase) Option {
	return func(a *Aligner) { a.timebase = tb }
}

// WithChunking splits clips longer than seconds into windows aligned
// concurrently, at most concurrency at a time. seconds 0 disables chunking;
// concurrency 0 means the service default.
func WithChunking(seconds float64, concurrency int) Option {
	return func(a *Aligner) {
		a.chunkSeconds = seconds
		if concurrency > 0 {
			a.chunkConcurrency = concurrency
		}
	}
}

// WithConverter overrides the grapheme-to-phoneme converter. The converter
// must emit only symbols present in the aligner's vocabulary.
func WithConverter(c g2p.Converter) Option {
	return func(a *Aligner) { a.converter = c }
}

// WithVocabulary overrides the phoneme vocabulary for models trained with a
// different symbol ordering.
func WithVocabulary(v *phoneme.Vocabulary) Option {
	return func(a *Aligner) { a.vocab = v }
}

// WithChecker overrides the cross-check comparator.
func WithChecker(c *crosscheck.Checker) Option {
	return func(a *Aligner) { a.checker = c }
}

// WithMetrics overrides the metrics sink, primarily for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Aligner) { a.metrics = m }
}

// New constructs an Aligner over the given acoustic provider. Options are
// applied after defaults: the Hangul converter, a vocabulary of its phoneme
// inventory with the silence token at id 0, and the stock timebase.
func New(provider acoustic.Provider, opts ...Option) (*Aligner, error) {
	a := &Aligner{
		provider:         provider,
		converter:        g2p.NewHangul(),
		checker:          crosscheck.New(),
		timebase:         align.DefaultTimebase,
		chunkConcurrency: defaultChunkConcurrency,
	}
	for _, o := range opts {
		o(a)
	}
	if a.vocab == nil {
		v, err := phoneme.New(append([]string{phoneme.Silence}, g2p.NewHangul().Phonemes()...))
		if err != nil {
			return nil, fmt.Errorf("service: build vocabulary: %w", err)
		}
		a.vocab = v
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.transcRate <= 0 {
		a.transcRate = defaultTranscriberRate
	}
	if err := a.timebase.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	a.decoder = align.NewDecoder(a.vocab.SilenceID())
	return a, nil
}

// Align runs the full pipeline for one request and returns the finished
// document: every phoneme and word interval, plus the cross-check agreement
// when a transcriber is configured.
//
// All pipeline failures are atomic; no partial document is ever returned.
// Persistence is the one exception: a store failure is logged and counted
// but the aligned document is still served.
func (a *Aligner) Align(ctx context.Context, req Request) (*export.Document, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "align.request")
	defer span.End()

	a.metrics.InflightAlignments.Add(ctx, 1)
	defer a.metrics.InflightAlignments.Add(ctx, -1)

	doc, err := a.run(ctx, start, req)
	a.metrics.AlignDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordAlignRequest(ctx, "error")
		return nil, err
	}
	a.metrics.RecordAlignRequest(ctx, "ok")
	return doc, nil
}

func (a *Aligner) run(ctx context.Context, start time.Time, req Request) (*export.Document, error) {
	if req.Clip == nil || len(req.Clip.Samples) == 0 {
		return nil, ErrNoAudio
	}

	jobID := uuid.New()
	log := observe.Logger(ctx).With(slog.String("job_id", jobID.String()))

	clip := req.Clip.Resampled(a.timebase.SampleRate)
	duration := clip.Duration()

	text := strings.TrimSpace(req.Text)
	transcribed := false
	if text == "" {
		if a.transcriber == nil {
			return nil, ErrNoText
		}
		t, err := a.transcribe(ctx, req.Clip)
		if err != nil {
			return nil, err
		}
		if t == "" {
			return nil, fmt.Errorf("%w: transcriber returned no text", ErrNoText)
		}
		text = t
		transcribed = true
		log.Info("transcribed lyric text", slog.Int("words", len(strings.Fields(text))))
	}

	res, err := a.alignText(ctx, clip, text)
	if err != nil {
		return nil, err
	}

	// Cross-check only applies to caller-supplied text; comparing the
	// transcriber against itself would always agree.
	var agreement *float64
	if a.transcriber != nil && !transcribed {
		hyp, err := a.transcribe(ctx, req.Clip)
		if err != nil {
			log.Warn("cross-check transcription failed", slog.String("error", err.Error()))
		} else {
			report := a.checker.Compare(text, hyp)
			agreement = &report.Agreement
			a.metrics.RecordAgreement(ctx, report.Agreement)
			log.Info("transcript cross-check",
				slog.Float64("agreement", report.Agreement),
				slog.Int("mismatches", len(report.Mismatches)))
		}
	}

	doc := export.NewDocument(jobID.String(), text, duration, agreement, res.segments, res.words, res.wordIndex)

	if a.jobs != nil {
		a.persist(ctx, log, store.Job{
			ID:             jobID,
			Filename:       req.Filename,
			SampleRate:     req.Clip.SampleRate,
			AudioSeconds:   duration,
			Text:           text,
			Agreement:      agreement,
			ElapsedSeconds: time.Since(start).Seconds(),
		}, doc)
	}

	log.Info("alignment complete",
		slog.Float64("audio_seconds", duration),
		slog.Int("phonemes", len(doc.Phones)),
		slog.Int("words", len(doc.Words)),
		slog.Duration("elapsed", time.Since(start)))
	return doc, nil
}

// transcribe runs the transcriber over the clip at its expected rate and
// joins the resulting lines into one text.
func (a *Aligner) transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	ctx, span := observe.StartSpan(ctx, "align.transcribe")
	defer span.End()

	start := time.Now()
	lines, err := a.transcriber.Transcribe(ctx, clip.Resampled(a.transcRate).Samples)
	a.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordProviderError(ctx, "transcriber")
		return "", fmt.Errorf("transcribe: %w", err)
	}

	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// predict scores samples with the acoustic provider and gates the returned
// frame count against the aligner's own timebase: a deviation beyond one
// frame means provider and aligner disagree about the frame grid and every
// downstream timestamp would be wrong.
func (a *Aligner) predict(ctx context.Context, samples []float32, ids []int) (*acoustic.Prediction, error) {
	ctx, span := observe.StartSpan(ctx, "align.predict")
	defer span.End()

	start := time.Now()
	pred, err := a.provider.Predict(ctx, samples, ids)
	a.metrics.ProviderDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordProviderError(ctx, "acoustic")
		return nil, fmt.Errorf("%w: predict: %w", align.ErrProvider, err)
	}
	if err := pred.Validate(); err != nil {
		a.metrics.RecordProviderError(ctx, "acoustic")
		return nil, fmt.Errorf("%w: %v", align.ErrProvider, err)
	}
	want := a.timebase.Frames(len(samples))
	if diff := pred.Frames - want; diff < -1 || diff > 1 {
		a.metrics.RecordProviderError(ctx, "acoustic")
		return nil, fmt.Errorf("%w: provider returned %d frames, timebase expects %d", align.ErrProvider, pred.Frames, want)
	}
	return pred, nil
}

// persist saves the job best-effort. Failures are logged and counted, never
// returned; the aligned response has already been earned at this point.
func (a *Aligner) persist(ctx context.Context, log *slog.Logger, job store.Job, doc *export.Document) {
	ctx, span := observe.StartSpan(ctx, "align.persist")
	defer span.End()

	segments := make([]store.Segment, 0, len(doc.Phones)+len(doc.Words))
	for i, p := range doc.Phones {
		segments = append(segments, store.Segment{
			Kind:       store.KindPhoneme,
			Ordinal:    i,
			Label:      p.Phoneme,
			WordIndex:  p.WordIndex,
			Start:      p.Start,
			End:        p.End,
			Confidence: p.Confidence,
		})
	}
	for i, w := range doc.Words {
		segments = append(segments, store.Segment{
			Kind:       store.KindWord,
			Ordinal:    i,
			Label:      w.Word,
			WordIndex:  w.Index,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Confidence,
		})
	}

	if err := a.jobs.SaveJob(ctx, job, segments); err != nil {
		a.metrics.RecordStoreFailure(ctx, "save_job")
		log.Warn("job persistence failed", slog.String("error", err.Error()))
		return
	}
	log.Debug("job persisted", slog.Int("segments", len(segments)))
}
