// Package mock provides a scripted [transcriber.Provider] for tests.
//
// Configure the canned Lines or TranscribeErr (or set TranscribeFunc for
// full control), run the code under test, then inspect TranscribeCalls:
//
//	m := &mock.Provider{Lines: []transcriber.Line{{Text: "안녕", End: 1.2}}}
//	svc, err := service.New(acoustic, service.WithTranscriber(m))
//	...
//	if len(m.TranscribeCalls) != 1 {
//		t.Fatalf("expected one transcription, got %d", len(m.TranscribeCalls))
//	}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/sorilab/hanalign/pkg/provider/transcriber"
)

// TranscribeCall records the arguments of one Transcribe invocation.
type TranscribeCall struct {
	Samples []float32
}

// Provider is a scripted transcriber. The zero value returns no lines and
// no error. All fields must be configured before first use; the recording
// fields are safe to read after the code under test has finished.
type Provider struct {
	mu sync.Mutex

	// TranscribeFunc, when set, handles calls instead of Lines/TranscribeErr.
	TranscribeFunc func(ctx context.Context, samples []float32) ([]transcriber.Line, error)

	// Lines is returned by Transcribe when TranscribeFunc is unset.
	Lines []transcriber.Line

	// TranscribeErr is returned by Transcribe when TranscribeFunc is unset.
	TranscribeErr error

	// TranscribeCalls records every invocation in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount counts Close invocations.
	CloseCallCount int
}

var _ transcriber.Provider = (*Provider)(nil)

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) ([]transcriber.Line, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{
		Samples: slices.Clone(samples),
	})
	fn := p.TranscribeFunc
	lines := p.Lines
	err := p.TranscribeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples)
	}
	return lines, err
}

// Close counts the call and always succeeds.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return nil
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.CloseCallCount = 0
}
