package g2p

import (
	"strings"

	"github.com/sorilab/hanalign/pkg/phoneme"
)

// Precomposed Hangul syllables occupy U+AC00..U+D7A3. A syllable's code point
// encodes its jamo as (onset*21 + nucleus)*28 + coda + hangulBase.
const (
	hangulBase = 0xAC00
	hangulLast = 0xD7A3
)

// onsetPhonemes maps the 19 onset (초성) consonants. Index 11 is the silent
// ieung and contributes no phoneme.
var onsetPhonemes = [19]string{
	"g", "gg", "n", "d", "dd", "r", "m", "b", "bb",
	"s", "ss", "", "j", "jj", "ch", "k", "t", "p", "h",
}

// nucleusPhonemes maps the 21 nucleus (중성) vowels.
var nucleusPhonemes = [21]string{
	"a", "ae", "ya", "yae", "eo", "e", "yeo", "ye",
	"o", "wa", "wae", "oe", "yo", "u", "wo", "we",
	"wi", "yu", "eu", "ui", "i",
}

// codaPhonemes maps the 28 coda (종성) slots to representative (대표음)
// phonemes, uppercase to keep them distinct from onsets. Index 0 means no
// coda; compound codas collapse to their representative sound.
var codaPhonemes = [28]string{
	"",   // none
	"K",  // ㄱ
	"K",  // ㄲ
	"K",  // ㄳ
	"N",  // ㄴ
	"N",  // ㄵ
	"N",  // ㄶ
	"T",  // ㄷ
	"L",  // ㄹ
	"L",  // ㄺ
	"L",  // ㄻ
	"L",  // ㄼ
	"L",  // ㄽ
	"L",  // ㄾ
	"L",  // ㄿ
	"L",  // ㅀ
	"M",  // ㅁ
	"P",  // ㅂ
	"P",  // ㅄ
	"T",  // ㅅ
	"T",  // ㅆ
	"NG", // ㅇ
	"T",  // ㅈ
	"T",  // ㅊ
	"K",  // ㅋ
	"T",  // ㅌ
	"P",  // ㅍ
	"T",  // ㅎ
}

// Hangul converts Korean text to a forced phoneme sequence by closed-form
// decomposition of precomposed syllables. Characters outside the Hangul
// syllable block (Latin, digits, punctuation, bare jamo) are skipped.
//
// The zero value is ready to use.
type Hangul struct{}

// Compile-time interface assertion.
var _ Converter = (*Hangul)(nil)

// NewHangul returns a Hangul converter.
func NewHangul() *Hangul { return &Hangul{} }

// Convert implements [Converter].
func (h *Hangul) Convert(text string) Sequence {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Sequence{
			Phonemes:  []string{phoneme.Silence},
			Words:     []string{},
			WordIndex: []int{-1},
		}
	}

	phs := make([]string, 0, len(text)+2)
	idx := make([]int, 0, len(text)+2)
	phs = append(phs, phoneme.Silence)
	idx = append(idx, -1)

	for w, word := range words {
		for _, r := range word {
			for _, p := range syllablePhonemes(r) {
				phs = append(phs, p)
				idx = append(idx, w)
			}
		}
		// Each word is followed by an optional-silence boundary.
		phs = append(phs, phoneme.Silence)
		idx = append(idx, -1)
	}

	phs, idx = tidyBoundaries(phs, idx)

	return Sequence{Phonemes: phs, Words: words, WordIndex: idx}
}

// Phonemes returns the distinct phonemes a conversion can emit, boundary token
// excluded: onsets, then nuclei, then representative codas. The list is what a
// vocabulary for a Korean acoustic model must cover at minimum.
func (h *Hangul) Phonemes() []string {
	out := make([]string, 0, len(onsetPhonemes)+len(nucleusPhonemes)+len(codaPhonemes))
	seen := make(map[string]bool)
	for _, table := range [][]string{onsetPhonemes[:], nucleusPhonemes[:], codaPhonemes[:]} {
		for _, p := range table {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// decompose splits a precomposed syllable into jamo table indices.
func decompose(r rune) (onset, nucleus, coda int, ok bool) {
	if r < hangulBase || r > hangulLast {
		return 0, 0, 0, false
	}
	code := int(r - hangulBase)
	return code / (21 * 28), (code % (21 * 28)) / 28, code % 28, true
}

// syllablePhonemes converts one rune to its phonemes: optional onset,
// mandatory nucleus, optional coda. Non-syllable runes yield nothing.
func syllablePhonemes(r rune) []string {
	onset, nucleus, coda, ok := decompose(r)
	if !ok {
		return nil
	}
	phs := make([]string, 0, 3)
	if p := onsetPhonemes[onset]; p != "" {
		phs = append(phs, p)
	}
	phs = append(phs, nucleusPhonemes[nucleus])
	if coda > 0 {
		if p := codaPhonemes[coda]; p != "" {
			phs = append(phs, p)
		}
	}
	return phs
}

// tidyBoundaries normalizes boundary-token runs in place: the trailing run is
// trimmed to a single token and any interior run longer than two collapses to
// exactly two (back-to-back empty words leave such runs behind).
func tidyBoundaries(phs []string, idx []int) ([]string, []int) {
	for len(phs) >= 2 && phs[len(phs)-1] == phoneme.Silence && phs[len(phs)-2] == phoneme.Silence {
		phs = phs[:len(phs)-1]
		idx = idx[:len(idx)-1]
	}
	if phs[len(phs)-1] != phoneme.Silence {
		phs = append(phs, phoneme.Silence)
		idx = append(idx, -1)
	}

	outPhs := phs[:0]
	outIdx := idx[:0]
	run := 0
	for i, p := range phs {
		if p == phoneme.Silence {
			run++
			if run > 2 {
				continue
			}
		} else {
			run = 0
		}
		outPhs = append(outPhs, p)
		outIdx = append(outIdx, idx[i])
	}
	return outPhs, outIdx
}
