package control

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// CommandRequest is the body of POST /v1/commands. Input is free text such
// as "come here". With /v1/commands/{name} the path wins over Input.
type CommandRequest struct {
	Input string   `json:"input,omitempty"`
	Args  []string `json:"args,omitempty"`
}

// CameraErrorRequest reports a camera producer failure.
type CameraErrorRequest struct {
	Error string `json:"error"`
}

// ConfigRequest is a runtime patch with human-readable durations.
type ConfigRequest struct {
	IdleThreshold      *string `json:"idle_threshold,omitempty"`
	AutoDismiss        *string `json:"auto_dismiss,omitempty"`
	AudioReactive      *bool   `json:"audio_reactive,omitempty"`
	FullscreenSuppress *bool   `json:"fullscreen_suppress,omitempty"`
	CameraEnabled      *bool   `json:"camera_enabled,omitempty"`
	InvasionEnabled    *bool   `json:"invasion_enabled,omitempty"`
}

// ConfigResponse lists the fields a patch set.
type ConfigResponse struct {
	Fields []string `json:"fields"`
}

// Patch converts the request to a runtime patch.
func (c ConfigRequest) Patch() (config.RuntimePatch, error) {
	p := config.RuntimePatch{
		AudioReactive:      c.AudioReactive,
		FullscreenSuppress: c.FullscreenSuppress,
		CameraEnabled:      c.CameraEnabled,
		InvasionEnabled:    c.InvasionEnabled,
	}
	var err error
	if p.IdleThreshold, err = parseDuration("idle_threshold", c.IdleThreshold); err != nil {
		return p, err
	}
	if p.AutoDismiss, err = parseDuration("auto_dismiss", c.AutoDismiss); err != nil {
		return p, err
	}
	if p.IdleThreshold != nil && *p.IdleThreshold < config.MinIdleThreshold {
		return p, errors.Wrapf(errors.ErrInvalidConfig, "idle_threshold must be at least %s", config.MinIdleThreshold)
	}
	if p.AutoDismiss != nil && *p.AutoDismiss < 0 {
		return p, errors.Wrap(errors.ErrInvalidConfig, "auto_dismiss must be non-negative")
	}
	return p, nil
}

func parseDuration(field string, s *string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "%s: %v", field, err)
	}
	return &d, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps engine errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrEngineStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	input := req.Input
	if name := chi.URLParam(r, "name"); name != "" {
		input = name
	}

	reply, err := s.engine.Do(r.Context(), input, req.Args...)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusNotFound {
			writeJSON(w, code, orchestrator.Reply{OK: false, Message: err.Error()})
			return
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleCameraSample(w http.ResponseWriter, r *http.Request) {
	var sample presence.Sample
	if err := decode(r, &sample); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Post(r.Context(), orchestrator.CameraSample{Sample: sample}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCameraError(w http.ResponseWriter, r *http.Request) {
	var req CameraErrorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Error == "" {
		req.Error = "camera failed"
	}
	cause := errors.NewCollaboratorError("camera", "capture", errors.New(req.Error))
	if err := s.engine.Post(r.Context(), orchestrator.CameraFailed{Err: cause}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if patch.Empty() {
		writeJSON(w, http.StatusOK, ConfigResponse{Fields: []string{}})
		return
	}
	if err := s.engine.Post(r.Context(), orchestrator.ApplyRuntimeConfig{Patch: patch}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, ConfigResponse{Fields: patch.Fields()})
}
