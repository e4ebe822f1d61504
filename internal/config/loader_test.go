package config_test

import (
	"strings"
	"testing"

	"github.com/sorilab/hanalign/internal/config"
)

func TestValidate_MinimalValid(t *testing.T) {
	t.Parallel()
	yaml := `
acoustic:
  primary:
    base_url: http://sofa:8000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingPrimaryBaseURL(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err == nil {
		t.Fatal("expected error for missing acoustic.primary.base_url, got nil")
	}
	if !strings.Contains(err.Error(), "base_url") {
		t.Errorf("error should mention base_url, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
acoustic:
  primary:
    base_url: http://sofa:8000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_DuplicateFallbackNames(t *testing.T) {
	t.Parallel()
	yaml := `
acoustic:
  primary:
    base_url: http://sofa:8000
  fallbacks:
    - name: backup
      base_url: http://a:8000
    - name: backup
      base_url: http://b:8000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate fallback names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_FallbackNameConflictsWithPrimary(t *testing.T) {
	t.Parallel()
	yaml := `
acoustic:
  primary:
    base_url: http://sofa:8000
  fallbacks:
    - name: primary
      base_url: http://backup:8000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fallback named like the primary, got nil")
	}
	if !strings.Contains(err.Error(), "conflicts") {
		t.Errorf("error should mention the conflict, got: %v", err)
	}
}

func TestValidate_FallbackRequiresNameAndURL(t *testing.T) {
	t.Parallel()
	yaml := `
acoustic:
  primary:
    base_url: http://sofa:8000
  fallbacks:
    - timeout_seconds: 30
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fallback without name and base_url, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "fallbacks[0].name") {
		t.Errorf("error should mention fallbacks[0].name, got: %v", err)
	}
	if !strings.Contains(errStr, "fallbacks[0].base_url") {
		t.Errorf("error should mention fallbacks[0].base_url, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/tls/server.crt
acoustic:
  primary:
    base_url: http://sofa:8000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for tls without key_file, got nil")
	}
	if !strings.Contains(err.Error(), "cert_file and key_file") {
		t.Errorf("error should mention both files, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  max_upload_bytes: -1
acoustic:
  primary:
    base_url: http://sofa:8000
align:
  chunk_seconds: -5
  chunk_concurrency: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"max_upload_bytes", "chunk_seconds", "chunk_concurrency"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_NegativeTimebaseValues(t *testing.T) {
	t.Parallel()
	yaml := `
acoustic:
  primary:
    base_url: http://sofa:8000
align:
  sample_rate: -44100
  hop_length: -512
  scale_factor: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"sample_rate", "hop_length", "scale_factor"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}
