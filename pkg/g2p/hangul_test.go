package g2p_test

import (
	"slices"
	"testing"

	"github.com/sorilab/hanalign/pkg/g2p"
)

func convert(t *testing.T, text string) g2p.Sequence {
	t.Helper()
	return g2p.NewHangul().Convert(text)
}

func assertSequence(t *testing.T, got g2p.Sequence, phonemes []string, words []string, wordIndex []int) {
	t.Helper()
	if !slices.Equal(got.Phonemes, phonemes) {
		t.Errorf("Phonemes = %v, want %v", got.Phonemes, phonemes)
	}
	if !slices.Equal(got.Words, words) {
		t.Errorf("Words = %v, want %v", got.Words, words)
	}
	if !slices.Equal(got.WordIndex, wordIndex) {
		t.Errorf("WordIndex = %v, want %v", got.WordIndex, wordIndex)
	}
	if len(got.Phonemes) != len(got.WordIndex) {
		t.Errorf("len(Phonemes) = %d, len(WordIndex) = %d, want equal", len(got.Phonemes), len(got.WordIndex))
	}
}

func TestConvert_SingleSyllable(t *testing.T) {
	assertSequence(t, convert(t, "가"),
		[]string{"SP", "g", "a", "SP"},
		[]string{"가"},
		[]int{-1, 0, 0, -1})
}

func TestConvert_TwoWords(t *testing.T) {
	assertSequence(t, convert(t, "가 나"),
		[]string{"SP", "g", "a", "SP", "n", "a", "SP"},
		[]string{"가", "나"},
		[]int{-1, 0, 0, -1, 1, 1, -1})
}

func TestConvert_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		assertSequence(t, convert(t, text),
			[]string{"SP"},
			[]string{},
			[]int{-1})
	}
}

func TestConvert_CodaSyllables(t *testing.T) {
	cases := []struct {
		text     string
		phonemes []string
	}{
		{"강", []string{"SP", "g", "a", "NG", "SP"}}, // ㅇ coda
		{"안", []string{"SP", "a", "N", "SP"}},       // silent onset ㅇ
		{"읽", []string{"SP", "i", "L", "SP"}},       // compound coda ㄺ collapses to L
		{"한", []string{"SP", "h", "a", "N", "SP"}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := convert(t, tc.text)
			if !slices.Equal(got.Phonemes, tc.phonemes) {
				t.Errorf("Convert(%q).Phonemes = %v, want %v", tc.text, got.Phonemes, tc.phonemes)
			}
		})
	}
}

func TestConvert_NonHangulCharactersSkippedInsideWord(t *testing.T) {
	assertSequence(t, convert(t, "가b나"),
		[]string{"SP", "g", "a", "n", "a", "SP"},
		[]string{"가b나"},
		[]int{-1, 0, 0, 0, 0, -1})
}

func TestConvert_WordWithNoPhonemesStillRecorded(t *testing.T) {
	// The word survives in Words and keeps later word ordinals stable, but
	// contributes nothing to the phoneme sequence beyond its boundary.
	assertSequence(t, convert(t, "abc 가"),
		[]string{"SP", "SP", "g", "a", "SP"},
		[]string{"abc", "가"},
		[]int{-1, -1, 0, 0, -1})
}

func TestConvert_OnlyNonHangulCollapsesToSingleBoundary(t *testing.T) {
	assertSequence(t, convert(t, "hello"),
		[]string{"SP"},
		[]string{"hello"},
		[]int{-1})
}

func TestConvert_BoundaryRunsNeverExceedTwo(t *testing.T) {
	got := convert(t, "a b c 가 x y 나")
	run := 0
	for _, p := range got.Phonemes {
		if p == "SP" {
			run++
			if run > 2 {
				t.Fatalf("boundary run longer than two in %v", got.Phonemes)
			}
		} else {
			run = 0
		}
	}
	if got.Phonemes[len(got.Phonemes)-1] != "SP" {
		t.Errorf("sequence does not end with boundary: %v", got.Phonemes)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	const text = "안녕하세요 반갑습니다"
	first := convert(t, text)
	second := convert(t, text)
	assertSequence(t, second, first.Phonemes, first.Words, first.WordIndex)
}

func TestPhonemes_DistinctInventory(t *testing.T) {
	inv := g2p.NewHangul().Phonemes()

	seen := make(map[string]bool)
	for _, p := range inv {
		if p == "" {
			t.Error("inventory contains the empty string")
		}
		if p == "SP" {
			t.Error("inventory contains the boundary token")
		}
		if seen[p] {
			t.Errorf("inventory contains %q twice", p)
		}
		seen[p] = true
	}

	// 18 audible onsets + 21 nuclei + 7 representative codas.
	if len(inv) != 46 {
		t.Errorf("len(inventory) = %d, want 46", len(inv))
	}
	for _, p := range []string{"g", "gg", "ch", "ui", "NG", "L"} {
		if !seen[p] {
			t.Errorf("inventory is missing %q", p)
		}
	}
}
