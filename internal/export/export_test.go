package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sorilab/hanalign/internal/align"
	"github.com/sorilab/hanalign/internal/export"
	"github.com/sorilab/hanalign/internal/store"
)

func floatPtr(v float64) *float64 { return &v }

// testDocument aligns the word 나 over an SP-n-a phoneme sequence in one
// second of audio.
func testDocument() *export.Document {
	segments := []align.Segment{
		{Phoneme: "SP", Index: 0, Start: 0, End: 0.2, Confidence: 0.5},
		{Phoneme: "n", Index: 1, Start: 0.2, End: 0.5, Confidence: 0.8},
		{Phoneme: "a", Index: 2, Start: 0.5, End: 1.0, Confidence: 0.9},
	}
	words := []align.Word{
		{Text: "나", Index: 0, Start: 0.2, End: 1.0, Confidence: 0.85},
	}
	return export.NewDocument("", "나", 1.0, nil, segments, words, []int{-1, 0, 0})
}

func TestNewDocument(t *testing.T) {
	d := testDocument()

	if len(d.Phones) != 3 || len(d.Words) != 1 {
		t.Fatalf("got %d phones and %d words, want 3 and 1", len(d.Phones), len(d.Words))
	}
	if d.Phones[0].WordIndex != -1 {
		t.Errorf("silence word index = %d, want -1", d.Phones[0].WordIndex)
	}
	if d.Phones[1].WordIndex != 0 || d.Phones[2].WordIndex != 0 {
		t.Errorf("phoneme word indices = %d, %d, want 0, 0", d.Phones[1].WordIndex, d.Phones[2].WordIndex)
	}
	if d.Words[0].Word != "나" || d.Words[0].Index != 0 {
		t.Errorf("word = %q index %d, want 나 index 0", d.Words[0].Word, d.Words[0].Index)
	}
	if d.Agreement != nil {
		t.Errorf("agreement = %v, want nil", *d.Agreement)
	}
}

func TestNewDocument_RoundsToMilliseconds(t *testing.T) {
	segments := []align.Segment{
		{Phoneme: "a", Index: 0, Start: 0.23219954648526078, End: 0.49886621315192743, Confidence: 0.7},
	}
	d := export.NewDocument("", "아", 0.5, nil, segments, nil, []int{0})

	if d.Phones[0].Start != 0.232 {
		t.Errorf("start = %v, want 0.232", d.Phones[0].Start)
	}
	if d.Phones[0].End != 0.499 {
		t.Errorf("end = %v, want 0.499", d.Phones[0].End)
	}
}

func TestJSON(t *testing.T) {
	d := testDocument()
	d.JobID = "0195d5f0-0000-7000-8000-000000000000"

	var buf bytes.Buffer
	if err := export.JSON(&buf, d); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		`"job_id":"0195d5f0-0000-7000-8000-000000000000"`,
		`"text":"나"`,
		`"duration":1`,
		`"phoneme":"SP"`,
		`"word_index":-1`,
		`"word":"나"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON output missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, "agreement") {
		t.Errorf("JSON output should omit nil agreement:\n%s", got)
	}

	d.Agreement = floatPtr(0.93)
	buf.Reset()
	if err := export.JSON(&buf, d); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"agreement":0.93`) {
		t.Errorf("JSON output missing agreement:\n%s", buf.String())
	}
}

func TestJSON_EmptyDocumentKeepsArrays(t *testing.T) {
	d := export.NewDocument("", "", 0, nil, nil, nil, nil)

	var buf bytes.Buffer
	if err := export.JSON(&buf, d); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, `"phonemes":[]`) || !strings.Contains(got, `"words":[]`) {
		t.Errorf("empty document should encode empty arrays, not null:\n%s", got)
	}
	if strings.Contains(got, "job_id") {
		t.Errorf("empty job id should be omitted:\n%s", got)
	}
}

func TestLab(t *testing.T) {
	d := &export.Document{Text: "나의 살던 고향은 꽃피는 산골"}

	var buf bytes.Buffer
	if err := export.Lab(&buf, d); err != nil {
		t.Fatalf("Lab: %v", err)
	}
	if got, want := buf.String(), "나의 살던 고향은 꽃피는 산골\n"; got != want {
		t.Errorf("Lab output = %q, want %q", got, want)
	}
}

func TestFromJob(t *testing.T) {
	id := uuid.New()
	job := &store.Job{
		ID:           id,
		Text:         "나",
		AudioSeconds: 2.5,
		Agreement:    floatPtr(0.9),
	}
	segments := []store.Segment{
		{Kind: store.KindPhoneme, Ordinal: 0, Label: "SP", WordIndex: -1, Start: 0, End: 0.2, Confidence: 0.5},
		{Kind: store.KindPhoneme, Ordinal: 1, Label: "n", WordIndex: 0, Start: 0.2, End: 0.5, Confidence: 0.8},
		{Kind: store.KindWord, Ordinal: 0, Label: "나", WordIndex: 0, Start: 0.2, End: 0.5, Confidence: 0.8},
		{Kind: "unknown", Ordinal: 0, Label: "x", Start: 0, End: 1},
	}

	d := export.FromJob(job, segments)

	if d.JobID != id.String() {
		t.Errorf("job id = %q, want %q", d.JobID, id.String())
	}
	if d.Duration != 2.5 {
		t.Errorf("duration = %v, want 2.5", d.Duration)
	}
	if d.Agreement == nil || *d.Agreement != 0.9 {
		t.Errorf("agreement = %v, want 0.9", d.Agreement)
	}
	if len(d.Phones) != 2 || len(d.Words) != 1 {
		t.Fatalf("got %d phones and %d words, want 2 and 1", len(d.Phones), len(d.Words))
	}
	if d.Phones[0].Phoneme != "SP" || d.Phones[0].WordIndex != -1 {
		t.Errorf("first phone = %+v, want SP with word index -1", d.Phones[0])
	}
	if d.Words[0].Word != "나" || d.Words[0].Index != 0 {
		t.Errorf("word = %+v, want 나 at index 0", d.Words[0])
	}
}

func TestFromJob_NoSegments(t *testing.T) {
	d := export.FromJob(&store.Job{ID: uuid.New()}, nil)

	var buf bytes.Buffer
	if err := export.JSON(&buf, d); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"phonemes":[]`) {
		t.Errorf("segment-less job should encode empty arrays:\n%s", buf.String())
	}
}
