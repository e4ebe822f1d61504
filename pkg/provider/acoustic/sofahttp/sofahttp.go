// Package sofahttp provides an acoustic.Provider backed by a SOFA-style ONNX
// inference server reachable over HTTP.
//
// The server receives the mono waveform as a 16-bit WAV upload together with
// the forced phoneme id sequence (POST /inference, multipart/form-data) and
// responds with JSON carrying the model's frame-level outputs under their
// native names: ph_prob_log, edge_prob, edge_diff and the frame count T.
//
// Usage:
//
//	p, err := sofahttp.New("http://localhost:8301",
//	    sofahttp.WithTimeout(2*time.Minute),
//	)
//	pred, err := p.Predict(ctx, clip.Samples, ids)
package sofahttp

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sorilab/hanalign/pkg/audio"
	"github.com/sorilab/hanalign/pkg/provider/acoustic"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio the
	// inference server expects inside the WAV upload.
	bitsPerSample = 16

	defaultSampleRate = 44100
	defaultTimeout    = 2 * time.Minute
)

// Compile-time assertion that Provider implements acoustic.Provider.
var _ acoustic.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSampleRate sets the sample rate in Hz declared in the WAV upload. It
// must match the rate the clip was resampled to before Predict is called.
// Defaults to 44100, the stock model's training rate.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
// Ignored when WithHTTPClient is also given. Defaults to 2 minutes; full
// songs on CPU-only inference servers can take a while.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to share a transport or to
// inject a test server client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements acoustic.Provider against a SOFA-style inference
// server. It holds no per-request state and is safe for concurrent use.
type Provider struct {
	baseURL    string
	sampleRate int
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Provider talking to the inference server at baseURL
// (e.g. "http://localhost:8301"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("sofa: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    baseURL,
		sampleRate: defaultSampleRate,
		timeout:    defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	return p, nil
}

// Predict uploads the waveform and id sequence and returns the model outputs.
// The response is shape-checked before it is returned, so a malformed server
// reply surfaces as an error wrapping acoustic.ErrMalformed.
func (p *Provider) Predict(ctx context.Context, samples []float32, seq []int) (*acoustic.Prediction, error) {
	if len(samples) == 0 {
		return nil, errors.New("sofa: no samples")
	}
	if len(seq) == 0 {
		return nil, errors.New("sofa: empty id sequence")
	}

	wavData := encodeWAV(audio.ToPCM16(samples), p.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "clip.wav")
	if err != nil {
		return nil, fmt.Errorf("sofa: create form file: %w", err)
	}
	if _, err := fw.Write(wavData); err != nil {
		return nil, fmt.Errorf("sofa: write wav data: %w", err)
	}

	ids, err := json.Marshal(seq)
	if err != nil {
		return nil, fmt.Errorf("sofa: encode id sequence: %w", err)
	}
	if err := mw.WriteField("ph_seq", string(ids)); err != nil {
		return nil, fmt.Errorf("sofa: write ph_seq field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("sofa: close multipart writer: %w", err)
	}

	endpoint := p.baseURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("sofa: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sofa: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sofa: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sofa: read response body: %w", err)
	}

	var out struct {
		PhProbLog [][]float64 `json:"ph_prob_log"`
		EdgeProb  []float64   `json:"edge_prob"`
		EdgeDiff  []float64   `json:"edge_diff"`
		Frames    int         `json:"T"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("sofa: parse JSON response: %w", err)
	}

	pred := &acoustic.Prediction{
		LogProbs:   out.PhProbLog,
		EdgeProb:   out.EdgeProb,
		EdgeOffset: out.EdgeDiff,
		Frames:     out.Frames,
	}
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("sofa: %w", err)
	}
	return pred, nil
}

// Ping reports whether the inference server answers its health endpoint.
// Used by readiness checks.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("sofa: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sofa: health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sofa: health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections held by the default HTTP client.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct inclusion
// in a multipart form upload. No external dependencies are required.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
