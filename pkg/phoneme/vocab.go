// Package phoneme defines the phoneme vocabulary shared between the
// grapheme-to-phoneme frontend, the acoustic probability provider and the
// alignment decoder.
//
// A [Vocabulary] is a bijection between phoneme strings and the small integer
// ids the acoustic model was trained with. The id of a phoneme is its position
// in the model's ordered symbol list, so a vocabulary must be constructed from
// exactly that list; reordering it silently misassigns every probability
// column.
package phoneme

import (
	"errors"
	"fmt"
)

// Silence is the reserved boundary token. It denotes silence or pause, appears
// between words in every forced sequence, and is the only phoneme the decoder
// treats specially (skippable, no duration bonus).
const Silence = "SP"

// Vocabulary maps phoneme strings to contiguous integer ids and back.
// It is immutable after construction and safe for concurrent use.
type Vocabulary struct {
	symbols []string
	ids     map[string]int
	silence int
}

// New builds a Vocabulary from the model's ordered symbol list. The list must
// be non-empty, free of duplicates and contain the [Silence] token; ids are
// assigned by position.
func New(symbols []string) (*Vocabulary, error) {
	if len(symbols) == 0 {
		return nil, errors.New("phoneme: empty symbol list")
	}
	ids := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if s == "" {
			return nil, fmt.Errorf("phoneme: empty symbol at position %d", i)
		}
		if prev, ok := ids[s]; ok {
			return nil, fmt.Errorf("phoneme: duplicate symbol %q at positions %d and %d", s, prev, i)
		}
		ids[s] = i
	}
	sil, ok := ids[Silence]
	if !ok {
		return nil, fmt.Errorf("phoneme: symbol list is missing the boundary token %q", Silence)
	}
	return &Vocabulary{
		symbols: append([]string(nil), symbols...),
		ids:     ids,
		silence: sil,
	}, nil
}

// Len returns the number of symbols in the vocabulary.
func (v *Vocabulary) Len() int { return len(v.symbols) }

// SilenceID returns the id of the reserved boundary token.
func (v *Vocabulary) SilenceID() int { return v.silence }

// ID returns the id of symbol and whether it is part of the vocabulary.
func (v *Vocabulary) ID(symbol string) (int, bool) {
	id, ok := v.ids[symbol]
	return id, ok
}

// Symbol returns the phoneme string for id and whether id is in range.
func (v *Vocabulary) Symbol(id int) (string, bool) {
	if id < 0 || id >= len(v.symbols) {
		return "", false
	}
	return v.symbols[id], true
}

// Symbols returns a copy of the ordered symbol list.
func (v *Vocabulary) Symbols() []string {
	return append([]string(nil), v.symbols...)
}

// Encode maps a phoneme sequence to its id sequence. Any symbol outside the
// vocabulary fails the whole encode; the error names the first offender and
// its position.
func (v *Vocabulary) Encode(symbols []string) ([]int, error) {
	out := make([]int, len(symbols))
	for i, s := range symbols {
		id, ok := v.ids[s]
		if !ok {
			return nil, fmt.Errorf("phoneme: symbol %q at position %d is not in the vocabulary", s, i)
		}
		out[i] = id
	}
	return out, nil
}
