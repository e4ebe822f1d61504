// Package server exposes the alignment worker over HTTP.
//
// POST /v1/align accepts a multipart form with an "audio" WAV part, an
// optional "text" field carrying the lyric text, and an optional "format"
// field selecting the response body: json (default), textgrid, or lab.
// GET /v1/jobs/{id} serves a persisted job back in the same formats.
//
// The server is a thin translation over [service.Aligner]: multipart intake
// and request limits on one side, status-code mapping and format negotiation
// on the other. Liveness, readiness, and metrics routes are registered
// separately by the daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sorilab/hanalign/internal/align"
	"github.com/sorilab/hanalign/internal/export"
	"github.com/sorilab/hanalign/internal/observe"
	"github.com/sorilab/hanalign/internal/service"
	"github.com/sorilab/hanalign/internal/store"
	"github.com/sorilab/hanalign/pkg/audio"
)

const (
	// DefaultMaxUploadBytes caps one upload when no limit is configured.
	DefaultMaxUploadBytes = 64 << 20

	// DefaultMaxAudioSeconds caps one clip's decoded duration when no limit
	// is configured.
	DefaultMaxAudioSeconds = 600

	// multipartMemory is how much of a parsed form is held in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20
)

// Response formats accepted in the "format" form field.
const (
	formatJSON     = "json"
	formatTextGrid = "textgrid"
	formatLab      = "lab"
)

// Aligner runs one alignment request. Implemented by [service.Aligner].
type Aligner interface {
	Align(ctx context.Context, req service.Request) (*export.Document, error)
}

// Server translates HTTP requests into aligner calls. It is safe for
// concurrent use.
type Server struct {
	aligner         Aligner
	jobs            store.JobStore
	maxUploadBytes  int64
	maxAudioSeconds float64
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithJobs enables GET /v1/jobs/{id} lookups against the given store.
// Without it every job lookup answers 404.
func WithJobs(js store.JobStore) Option {
	return func(s *Server) { s.jobs = js }
}

// WithUploadLimit caps one upload's byte size. Zero keeps the default.
func WithUploadLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAudioLimit caps one clip's decoded duration in seconds. Zero keeps the
// default.
func WithAudioLimit(seconds float64) Option {
	return func(s *Server) {
		if seconds > 0 {
			s.maxAudioSeconds = seconds
		}
	}
}

// New creates a Server over the given aligner.
func New(aligner Aligner, opts ...Option) *Server {
	s := &Server{
		aligner:         aligner,
		maxUploadBytes:  DefaultMaxUploadBytes,
		maxAudioSeconds: DefaultMaxAudioSeconds,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the alignment API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/align", s.handleAlign)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleJob)
}

// handleAlign serves POST /v1/align.
func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart form: "+err.Error())
		return
	}

	// Reject an unknown format before any inference work happens.
	format, err := parseFormat(r.FormValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing "audio" file part`)
		return
	}
	defer file.Close()

	clip, err := audio.DecodeWAV(file)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupported) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "decode wav: "+err.Error())
		return
	}
	if d := clip.Duration(); d > s.maxAudioSeconds {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("clip is %.1fs long, limit is %.0fs", d, s.maxAudioSeconds))
		return
	}

	doc, err := s.aligner.Align(r.Context(), service.Request{
		Clip:     clip,
		Text:     r.FormValue("text"),
		Filename: header.Filename,
	})
	if err != nil {
		status := alignStatus(err)
		observe.Logger(r.Context()).Warn("alignment request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()))
		writeError(w, status, err.Error())
		return
	}

	s.render(w, r, doc, format)
}

// handleJob serves GET /v1/jobs/{id}. The format query parameter selects the
// response body like the "format" field on POST /v1/align.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed job id")
		return
	}
	format, err := parseFormat(r.FormValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Warn("job lookup failed",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	segments, err := s.jobs.GetSegments(r.Context(), id)
	if err != nil {
		observe.Logger(r.Context()).Warn("segment lookup failed",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}

	s.render(w, r, export.FromJob(job, segments), format)
}

// render writes doc in the requested format. TextGrid and lab bodies carry a
// download filename derived from the job id.
func (s *Server) render(w http.ResponseWriter, r *http.Request, doc *export.Document, format string) {
	var err error
	switch format {
	case formatTextGrid:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(doc.JobID, "TextGrid"))
		err = export.TextGrid(w, doc)
	case formatLab:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", attachment(doc.JobID, "lab"))
		err = export.Lab(w, doc)
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		err = export.JSON(w, doc)
	}
	if err != nil {
		observe.Logger(r.Context()).Warn("response write failed",
			slog.String("format", format),
			slog.String("error", err.Error()))
	}
}

// parseFormat validates the requested response format, defaulting to JSON.
func parseFormat(v string) (string, error) {
	switch v {
	case "":
		return formatJSON, nil
	case formatJSON, formatTextGrid, formatLab:
		return v, nil
	}
	return "", fmt.Errorf("unknown format %q; expected json, textgrid, or lab", v)
}

// alignStatus maps pipeline failures onto HTTP status codes. An invariant
// violation is a 422: the request was well formed but the audio cannot carry
// the text, typically a clip far too short for the lyric.
func alignStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNoAudio), errors.Is(err, service.ErrNoText):
		return http.StatusBadRequest
	case errors.Is(err, align.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, align.ErrInvariant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, align.ErrProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// attachment builds a Content-Disposition value naming the download after
// the job.
func attachment(jobID, ext string) string {
	if jobID == "" {
		jobID = "alignment"
	}
	return fmt.Sprintf("attachment; filename=%q", jobID+"."+ext)
}

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// writeError encodes a JSON error envelope with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: msg}); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
