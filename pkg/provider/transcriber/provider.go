// Package transcriber defines the contract for obtaining lyric text from
// audio when an alignment request carries none.
//
// Transcription here is a batch operation over a whole clip; the resulting
// text flows through the normal grapheme-to-phoneme and alignment pipeline
// exactly as user-supplied text would. Timestamps on the returned lines are
// the recognizer's own coarse estimates; the aligner uses them for
// cross-checking and never copies them into its output.
package transcriber

import "context"

// Line is one transcribed utterance with coarse time bounds in seconds.
type Line struct {
	Text  string
	Start float64
	End   float64
}

// Provider produces a batch transcription of a full clip.
//
// Samples are mono float32 at the rate the implementation documents.
// Implementations must be safe for concurrent use and honor ctx on blocking
// work.
type Provider interface {
	Transcribe(ctx context.Context, samples []float32) ([]Line, error)
}
