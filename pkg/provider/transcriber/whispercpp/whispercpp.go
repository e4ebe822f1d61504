// Package whispercpp runs speech recognition against a local whisper.cpp
// model through its cgo bindings.
//
// Building this package requires the whisper.cpp static library and headers
// on the compiler search paths, for example:
//
//	C_INCLUDE_PATH=/path/to/whisper.cpp LIBRARY_PATH=/path/to/whisper.cpp go build
//
// The model file is loaded once at construction and shared across calls;
// each Transcribe call decodes in its own context, so one Provider serves
// concurrent requests.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sorilab/hanalign/pkg/provider/transcriber"
)

// SampleRate is the input rate whisper.cpp expects. Callers resample their
// audio to this rate before handing it to Transcribe.
const SampleRate = 16000

const defaultLanguage = "ko"

var _ transcriber.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLanguage sets the language hint passed to the decoder.
// Defaults to Korean.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// Provider transcribes clips with a whisper.cpp model loaded in-process.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New loads the model at modelPath and returns a ready Provider.
// Call Close to release the model when done.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Transcribe runs the whole clip through the model and returns the decoded
// lines in order. Samples must be mono float32 at [SampleRate].
func (p *Provider) Transcribe(ctx context.Context, samples []float32) ([]transcriber.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("whispercpp: no samples")
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whispercpp: new context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whispercpp: set language failed, using model default",
			"language", p.language,
			"error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whispercpp: process: %w", err)
	}

	var lines []transcriber.Line
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("whispercpp: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		lines = append(lines, transcriber.Line{
			Text:  text,
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		})
	}
	return lines, nil
}

// Close releases the loaded model. The Provider must not be used afterwards.
func (p *Provider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}
