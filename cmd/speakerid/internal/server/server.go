// Package server implements the HTTP boundary for speaker enrollment
// and identification.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/speakerid"
)

// DefaultMaxAudioBytes caps uploaded clip size at 10 MiB.
const DefaultMaxAudioBytes = 10 << 20

// Options configures a Server.
type Options struct {
	// Addr is the listen address.
	Addr string

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxAudioBytes caps the request body size. Defaults to
	// DefaultMaxAudioBytes.
	MaxAudioBytes int64

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
}

// Server serves the speaker identification HTTP API.
type Server struct {
	engine          *speakerid.Engine
	logger          *slog.Logger
	maxAudioBytes   int64
	addr            string
	shutdownTimeout time.Duration
}

// New creates a server around an engine.
func New(engine *speakerid.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAudioBytes := opts.MaxAudioBytes
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		engine:          engine,
		logger:          logger,
		maxAudioBytes:   maxAudioBytes,
		addr:            opts.Addr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /enroll", s.handleEnroll)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("GET /enrolled-users", s.handleUsers)
	mux.HandleFunc("DELETE /delete-user/{username}", s.handleDelete)
	return s.withRequestID(mux)
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	s.logger.Info("server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Users(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "running",
		"message":        "Speaker Identification Server",
		"enrolled_users": len(users),
		"endpoints": map[string]string{
			"health":         "/ (GET)",
			"enroll":         "/enroll (POST)",
			"predict":        "/predict (POST)",
			"enrolled_users": "/enrolled-users (GET)",
			"delete_user":    "/delete-user/{username} (DELETE)",
		},
	})
}

type enrollResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Username string `json:"username"`
	speakerid.EnrollResponse
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeAudioError(w, err)
		return
	}

	username := r.FormValue("username")
	clipNumber, err := strconv.Atoi(r.FormValue("clip_number"))
	if err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "invalid_clip_index", "valid clip_number is required")
		return
	}

	audio, err := s.readAudio(r)
	if err != nil {
		s.writeAudioError(w, err)
		return
	}

	resp, err := s.engine.Enroll(r.Context(), username, clipNumber, audio)
	if err != nil {
		s.writeError(w, err)
		return
	}

	message := fmt.Sprintf("Clip %d/%d received", resp.ClipsReceived, resp.ClipsRequired)
	if resp.Complete {
		message = fmt.Sprintf("Enrollment complete for %s!", username)
	}

	s.writeJSON(w, http.StatusOK, enrollResponse{
		Status:         "success",
		Message:        message,
		Username:       username,
		EnrollResponse: resp,
	})
}

type predictResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	speakerid.IdentifyResponse
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeAudioError(w, err)
		return
	}

	audio, err := s.readAudio(r)
	if err != nil {
		s.writeAudioError(w, err)
		return
	}

	resp, err := s.engine.Identify(r.Context(), audio)
	if errors.Is(err, speakerid.ErrNoEnrolledUsers) {
		// Enrollment is the remedy, not a better probe; the original
		// server reported this as a successful non-match.
		s.writeJSON(w, http.StatusOK, predictResponse{
			Status:  "success",
			Message: "No enrolled users in system",
			IdentifyResponse: speakerid.IdentifyResponse{
				Prediction:   speakerid.UnknownSpeaker,
				Threshold:    s.engine.Threshold(),
				Similarities: map[string]float32{},
			},
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	message := "No match found above threshold"
	if resp.Matched {
		message = fmt.Sprintf("Matched with %s", resp.Prediction)
	}

	s.writeJSON(w, http.StatusOK, predictResponse{
		Status:           "success",
		Message:          message,
		IdentifyResponse: resp,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Users(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(users),
		"users":  users,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	if err := s.engine.Remove(r.Context(), username); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("User %s deleted successfully", username),
	})
}

// parseForm installs the body size cap and parses the multipart form.
// It must run before any form access, since FormValue would otherwise
// consume the body uncapped.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAudioBytes)
	return r.ParseMultipartForm(s.maxAudioBytes)
}

// readAudio extracts the uploaded clip from the multipart form field
// "audio".
func (s *Server) readAudio(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("audio")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio upload")
	}
	return audio, nil
}

func (s *Server) writeAudioError(w http.ResponseWriter, err error) {
	// The multipart reader does not always wrap *http.MaxBytesError, so
	// match the message as a fallback.
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		s.writeErrorCode(w, http.StatusRequestEntityTooLarge, "audio_too_large",
			fmt.Sprintf("audio too large, maximum size is %d bytes", s.maxAudioBytes))
		return
	}
	s.writeErrorCode(w, http.StatusBadRequest, "invalid_audio", "audio file is required")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := speakerid.ErrorCode(err)
	s.writeErrorCode(w, statusFor(code), code, err.Error())
}

func (s *Server) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

func statusFor(code string) int {
	switch code {
	case "invalid_username", "invalid_clip_index", "extraction_failed",
		"degenerate_embedding", "dimension_mismatch":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
