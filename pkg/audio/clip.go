// Package audio is the intake path from uploaded WAV audio to the mono
// float32 samples the rest of the pipeline consumes.
//
// The two primary pieces are:
//
//   - [Clip]: decoded mono audio with its sample rate.
//   - [DecodeWAV]: 16-bit PCM WAV decoding with channel mixdown and
//     normalization to [-1, 1].
//
// Conversion helpers ([ToPCM16], [ResampleMono]) are pure functions so
// provider clients can re-encode or re-rate a clip without owning state.
package audio

import (
	"errors"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupported marks WAV input the intake cannot decode: non-RIFF streams,
// non-PCM encodings, and bit depths other than 16.
var ErrUnsupported = errors.New("unsupported audio encoding")

// Clip is decoded audio ready for alignment: mono samples in [-1, 1].
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Resampled returns the clip converted to rate via linear interpolation. The
// receiver is returned unchanged when the rate already matches.
func (c *Clip) Resampled(rate int) *Clip {
	if rate <= 0 || rate == c.SampleRate {
		return c
	}
	return &Clip{Samples: ResampleMono(c.Samples, c.SampleRate, rate), SampleRate: rate}
}

// DecodeWAV reads a 16-bit PCM WAV stream into a mono clip, averaging
// interleaved channels and normalizing samples to [-1, 1]. Anything the
// decoder cannot represent that way wraps [ErrUnsupported].
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupported)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav audio format %d, want PCM", ErrUnsupported, dec.WavAudioFormat)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: bit depth %d, want 16", ErrUnsupported, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	return FromPCMBuffer(buf)
}

// FromPCMBuffer converts an interleaved 16-bit PCM buffer into a mono clip.
// Useful for callers that already hold decoded go-audio buffers from another
// container format.
func FromPCMBuffer(buf *gaudio.IntBuffer) (*Clip, error) {
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrUnsupported, channels)
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := range frames {
		// Average in int32 like the PCM mixdown path, then normalize.
		var sum int32
		for ch := range channels {
			sum += int32(buf.Data[i*channels+ch])
		}
		samples[i] = float32(sum/int32(channels)) / 32768
	}
	return &Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}
