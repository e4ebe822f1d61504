package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.MaxAudioSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.max_audio_seconds %g must not be negative", cfg.Server.MaxAudioSeconds))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Acoustic backends
	if cfg.Acoustic.Primary.BaseURL == "" {
		errs = append(errs, errors.New("acoustic.primary.base_url is required"))
	}
	if cfg.Acoustic.Primary.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("acoustic.primary.timeout_seconds %d must not be negative", cfg.Acoustic.Primary.TimeoutSeconds))
	}
	primaryName := cfg.Acoustic.PrimaryName()
	fallbackNamesSeen := make(map[string]int, len(cfg.Acoustic.Fallbacks))
	for i, fb := range cfg.Acoustic.Fallbacks {
		prefix := fmt.Sprintf("acoustic.fallbacks[%d]", i)
		switch {
		case fb.Name == "":
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		case fb.Name == primaryName:
			errs = append(errs, fmt.Errorf("%s.name %q conflicts with the primary backend name", prefix, fb.Name))
		default:
			if prev, ok := fallbackNamesSeen[fb.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of acoustic.fallbacks[%d]", prefix, fb.Name, prev))
			}
			fallbackNamesSeen[fb.Name] = i
		}
		if fb.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required", prefix))
		}
		if fb.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout_seconds %d must not be negative", prefix, fb.TimeoutSeconds))
		}
	}
	if cfg.Acoustic.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("acoustic.breaker.max_failures %d must not be negative", cfg.Acoustic.Breaker.MaxFailures))
	}
	if cfg.Acoustic.Breaker.ResetTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("acoustic.breaker.reset_timeout_seconds %d must not be negative", cfg.Acoustic.Breaker.ResetTimeoutSeconds))
	}
	if cfg.Acoustic.Breaker.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("acoustic.breaker.half_open_max %d must not be negative", cfg.Acoustic.Breaker.HalfOpenMax))
	}

	// Align
	if cfg.Align.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("align.sample_rate %d must not be negative", cfg.Align.SampleRate))
	}
	if cfg.Align.HopLength < 0 {
		errs = append(errs, fmt.Errorf("align.hop_length %d must not be negative", cfg.Align.HopLength))
	}
	if cfg.Align.ScaleFactor < 0 {
		errs = append(errs, fmt.Errorf("align.scale_factor %g must not be negative", cfg.Align.ScaleFactor))
	}
	if cfg.Align.ChunkSeconds < 0 {
		errs = append(errs, fmt.Errorf("align.chunk_seconds %g must not be negative", cfg.Align.ChunkSeconds))
	}
	if cfg.Align.ChunkConcurrency < 0 {
		errs = append(errs, fmt.Errorf("align.chunk_concurrency %d must not be negative", cfg.Align.ChunkConcurrency))
	}

	// Availability warnings
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; alignment jobs will not be persisted")
	}
	if cfg.Transcriber.ModelPath == "" {
		slog.Warn("transcriber.model_path is empty; transcription cross-checks are disabled")
	}

	return errors.Join(errs...)
}
