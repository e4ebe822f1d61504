// Package crosscheck measures agreement between the lyric text an alignment
// was forced against and an independent transcription of the same audio.
//
// The check is advisory: a low agreement ratio flags requests whose supplied
// text probably does not match the audio (wrong song, wrong verse, heavy
// ad-libbing). It never rejects a request; callers record the ratio and
// surface it alongside the alignment result.
package crosscheck

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultWordThreshold = 0.80
	defaultLookahead     = 3
)

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithWordThreshold sets the minimum Jaro-Winkler score at which two paired
// words are considered to agree. Default: 0.80.
func WithWordThreshold(threshold float64) Option {
	return func(c *Checker) {
		c.wordThreshold = threshold
	}
}

// WithLookahead sets how many upcoming hypothesis words each reference word
// is compared against. Default: 3.
func WithLookahead(n int) Option {
	return func(c *Checker) {
		c.lookahead = n
	}
}

// Mismatch is a reference word that found no agreeing hypothesis word.
// Hypothesis holds the closest candidate in the search window and Score its
// similarity; both are zero when nothing in the window shared any
// similarity at all.
type Mismatch struct {
	Reference  string
	Hypothesis string
	Score      float64
}

// Report summarizes one comparison.
type Report struct {
	// Agreement is the fraction of words that agree, in [0, 1]. Extra words
	// on either side lower it. Two empty texts agree completely.
	Agreement float64

	// ReferenceWords and HypothesisWords are the normalized word counts.
	ReferenceWords  int
	HypothesisWords int

	// Mismatches lists the reference words that disagreed, in order.
	Mismatches []Mismatch
}

// Checker compares forced text against transcriptions. It is read-only after
// construction and safe for concurrent use.
type Checker struct {
	wordThreshold float64
	lookahead     int
}

// New returns a [Checker] configured with the supplied options.
func New(opts ...Option) *Checker {
	c := &Checker{
		wordThreshold: defaultWordThreshold,
		lookahead:     defaultLookahead,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compare measures how well hypothesis agrees with reference, word by word.
//
// Both texts are normalized (lowercased, punctuation stripped) and split
// into words. Pairing walks both lists left to right: each reference word is
// matched by Jaro-Winkler similarity against the next few hypothesis words,
// so a single inserted word shifts the pairing instead of failing everything
// after it. An unmatched reference word leaves the hypothesis cursor in
// place, so a dropped hypothesis word costs one mismatch, not a cascade.
func (c *Checker) Compare(reference, hypothesis string) Report {
	ref := normalize(reference)
	hyp := normalize(hypothesis)

	report := Report{
		ReferenceWords:  len(ref),
		HypothesisWords: len(hyp),
	}
	if len(ref) == 0 && len(hyp) == 0 {
		report.Agreement = 1
		return report
	}

	matched := 0
	hi := 0
	for _, rw := range ref {
		bestScore := 0.0
		bestIdx := -1
		bestWord := ""
		limit := min(hi+c.lookahead, len(hyp))
		for j := hi; j < limit; j++ {
			if s := matchr.JaroWinkler(rw, hyp[j], false); s > bestScore {
				bestScore = s
				bestIdx = j
				bestWord = hyp[j]
			}
		}
		if bestIdx >= 0 && bestScore >= c.wordThreshold {
			matched++
			hi = bestIdx + 1
			continue
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			Reference:  rw,
			Hypothesis: bestWord,
			Score:      bestScore,
		})
	}

	report.Agreement = float64(matched) / float64(max(len(ref), len(hyp)))
	return report
}

// normalize lowercases text, keeps only letters and digits, and splits it
// into words.
func normalize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
