package whispercpp_test

import (
	"context"
	"os"
	"testing"

	"github.com/sorilab/hanalign/pkg/provider/transcriber/whispercpp"
)

// testModelPath returns the path to a ggml model file, skipping the test
// when none is configured. Download one with the whisper.cpp helper script:
//
//	./models/download-ggml-model.sh base
func testModelPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping model-backed test")
	}
	return path
}

// ---- constructor validation (no model required) -----------------------

func TestNew_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whispercpp.New(""); err == nil {
		t.Fatal("New(\"\") returned nil error")
	}
}

func TestNew_InvalidPath_ReturnsError(t *testing.T) {
	if _, err := whispercpp.New("/nonexistent/model.bin"); err == nil {
		t.Fatal("New with nonexistent model path returned nil error")
	}
}

// ---- model-backed tests ------------------------------------------------

func TestTranscribe_SilenceProducesOrderedLines(t *testing.T) {
	p, err := whispercpp.New(testModelPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	// One second of silence. The recognizer may emit nothing or a filler
	// token; either way the lines must be well formed and ordered.
	samples := make([]float32, whispercpp.SampleRate)
	lines, err := p.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	prevEnd := 0.0
	for i, line := range lines {
		if line.Text == "" {
			t.Errorf("line %d has empty text", i)
		}
		if line.Start < prevEnd {
			t.Errorf("line %d starts at %v before previous end %v", i, line.Start, prevEnd)
		}
		if line.End < line.Start {
			t.Errorf("line %d ends at %v before its start %v", i, line.End, line.Start)
		}
		prevEnd = line.End
	}
}

func TestTranscribe_EmptySamples_ReturnsError(t *testing.T) {
	p, err := whispercpp.New(testModelPath(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if _, err := p.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("Transcribe with no samples returned nil error")
	}
}
