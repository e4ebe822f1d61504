// Package export renders alignment results for downstream tooling.
//
// A [Document] is the exchange form of one finished alignment job: the
// transcript, the audio duration, and the phoneme and word intervals with
// their confidences. Writers render a Document as JSON (the API's default
// response body), as a Praat TextGrid with "phones" and "words" interval
// tiers, or as a .lab transcript line for corpus preparation.
//
// Writers are pure: they perform no I/O beyond the supplied [io.Writer] and
// are safe for concurrent use.
package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/sorilab/hanalign/internal/align"
	"github.com/sorilab/hanalign/internal/store"
)

// Phone is one aligned phoneme interval. WordIndex is the position of the
// word the phoneme belongs to in the transcript's word list, or -1 for
// silence.
type Phone struct {
	Phoneme    string  `json:"phoneme"`
	WordIndex  int     `json:"word_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// WordSpan is one aligned word interval. Index is the word's position in
// the transcript's word list; words that produced no phonemes leave gaps in
// the numbering.
type WordSpan struct {
	Word       string  `json:"word"`
	Index      int     `json:"index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Document is the complete result of one alignment job.
type Document struct {
	// JobID identifies the job for later retrieval. Empty when the result
	// was never persisted.
	JobID string `json:"job_id,omitempty"`

	// Text is the transcript the audio was aligned against.
	Text string `json:"text"`

	// Duration is the audio length in seconds.
	Duration float64 `json:"duration"`

	// Agreement is the cross-check ratio against an independent
	// transcription, or nil when no transcriber ran.
	Agreement *float64 `json:"agreement,omitempty"`

	Phones []Phone    `json:"phonemes"`
	Words  []WordSpan `json:"words"`
}

// NewDocument builds a [Document] from alignment output. wordIndex parallels
// the forced phoneme sequence, mapping each sequence position to its word;
// positions outside its range count as silence. Interval bounds are rounded
// to millisecond precision.
func NewDocument(jobID, text string, duration float64, agreement *float64, segments []align.Segment, words []align.Word, wordIndex []int) *Document {
	d := &Document{
		JobID:     jobID,
		Text:      text,
		Duration:  duration,
		Agreement: agreement,
		Phones:    make([]Phone, len(segments)),
		Words:     make([]WordSpan, len(words)),
	}
	for i, seg := range segments {
		wi := -1
		if seg.Index >= 0 && seg.Index < len(wordIndex) {
			wi = wordIndex[seg.Index]
		}
		d.Phones[i] = Phone{
			Phoneme:    seg.Phoneme,
			WordIndex:  wi,
			Start:      round3(seg.Start),
			End:        round3(seg.End),
			Confidence: seg.Confidence,
		}
	}
	for i, w := range words {
		d.Words[i] = WordSpan{
			Word:       w.Text,
			Index:      w.Index,
			Start:      round3(w.Start),
			End:        round3(w.End),
			Confidence: w.Confidence,
		}
	}
	return d
}

// FromJob rebuilds a [Document] from persisted job rows, as returned by a
// [store.JobStore]. Segment rows of an unknown kind are ignored.
func FromJob(job *store.Job, segments []store.Segment) *Document {
	d := &Document{
		JobID:     job.ID.String(),
		Text:      job.Text,
		Duration:  job.AudioSeconds,
		Agreement: job.Agreement,
		Phones:    []Phone{},
		Words:     []WordSpan{},
	}
	for _, seg := range segments {
		switch seg.Kind {
		case store.KindPhoneme:
			d.Phones = append(d.Phones, Phone{
				Phoneme:    seg.Label,
				WordIndex:  seg.WordIndex,
				Start:      seg.Start,
				End:        seg.End,
				Confidence: seg.Confidence,
			})
		case store.KindWord:
			d.Words = append(d.Words, WordSpan{
				Word:       seg.Label,
				Index:      seg.WordIndex,
				Start:      seg.Start,
				End:        seg.End,
				Confidence: seg.Confidence,
			})
		}
	}
	return d
}

// JSON writes d as a single JSON object.
func JSON(w io.Writer, d *Document) error {
	return json.NewEncoder(w).Encode(d)
}

// Lab writes the transcript as a single text line, the corpus layout
// expected by forced-alignment toolchains (one .lab next to each .wav).
func Lab(w io.Writer, d *Document) error {
	_, err := io.WriteString(w, d.Text+"\n")
	return err
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
