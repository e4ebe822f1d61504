// Package g2p converts text into the forced phoneme sequence the alignment
// decoder consumes.
//
// A conversion is purely lexical: words are split on whitespace, each word is
// decomposed character by character, and the reserved boundary token
// ([phoneme.Silence]) is woven in so that every word is delimited by optional
// silence. No pronunciation rules (assimilation, liaison, tensification) are
// applied; the output is a direct grapheme-level decomposition, which is what
// the acoustic model was trained against.
//
// Conversion never fails: characters a converter cannot decompose contribute
// no phonemes, and the word they belong to is still recorded so word indices
// stay aligned with the input.
package g2p

// Sequence is the result of converting one text.
//
// Phonemes always starts and ends with the boundary token and never contains
// a run of more than two consecutive boundary tokens. WordIndex parallels
// Phonemes and maps each position to the ordinal of its source word in Words,
// with -1 for boundary tokens; downstream consumers use it to regroup aligned
// phoneme segments into word spans.
type Sequence struct {
	Phonemes  []string
	Words     []string
	WordIndex []int
}

// Converter turns text in one script into a forced phoneme sequence.
// Implementations must be deterministic and safe for concurrent use.
type Converter interface {
	Convert(text string) Sequence
}
