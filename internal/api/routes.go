package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Moinster/SantaCam/internal/audit"
	"github.com/Moinster/SantaCam/internal/console"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const defaultStillsLimit = 50

// Handler returns the router with every /api/v1 endpoint registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.NotFoundHandler = http.HandlerFunc(notFound)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	apiV1.NotFoundHandler = http.HandlerFunc(notFound)
	apiV1.Use(correlationMiddleware)

	apiV1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	apiV1.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	apiV1.HandleFunc("/log", s.handleLog).Methods(http.MethodGet)
	apiV1.HandleFunc("/telemetry", s.handleTelemetry).Methods(http.MethodGet)

	apiV1.HandleFunc("/camera/start", s.handleCameraStart).Methods(http.MethodPost)
	apiV1.HandleFunc("/camera/stop", s.handleCameraStop).Methods(http.MethodPost)
	apiV1.HandleFunc("/camera/snapshot", s.handleSnapshot).Methods(http.MethodPost)

	apiV1.HandleFunc("/still", s.handleGetStill).Methods(http.MethodGet)
	apiV1.HandleFunc("/still", s.handleUploadStill).Methods(http.MethodPost)
	apiV1.HandleFunc("/still", s.handleClearStill).Methods(http.MethodDelete)
	apiV1.HandleFunc("/stills", s.handleStills).Methods(http.MethodGet)

	apiV1.HandleFunc("/remote/connect", s.handleRemoteConnect).Methods(http.MethodPost)
	apiV1.HandleFunc("/remote/capability", s.handleRemoteCapability).Methods(http.MethodPut)
	apiV1.HandleFunc("/visibility", s.handleVisibility).Methods(http.MethodPost)

	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir))).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		"Method "+r.Method+" is not allowed", nil)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, console.CodeNotFound, "Resource not found", nil)
}

// correlationMiddleware tags the request and its audit entries with a
// correlation id, honoring one supplied by the caller.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithCorrelationID(r.Context(), id)))
	})
}

// decodeStrict parses a JSON body rejecting unknown fields and trailing data.
func decodeStrict(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "Malformed JSON or unknown fields", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "Trailing data after JSON object", nil)
		return false
	}
	return true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	view := s.console.View()
	subsystems := map[string]interface{}{
		"telemetry": s.telemetryHub != nil,
		"vault":     s.stills != nil,
		"camera":    view.CameraStatus,
		"remote":    view.RemoteState,
	}

	health := map[string]interface{}{
		"status":     "ok",
		"uptimeSec":  uptime,
		"version":    Version,
		"subsystems": subsystems,
	}

	if s.telemetryHub == nil {
		health["status"] = "degraded"
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"Telemetry stream is unavailable", health)
		return
	}
	WriteSuccess(w, health)
}

// handleState handles GET /state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.console.View())
}

// handleLog handles GET /log; ?after=N limits the result to newer events.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		WriteSuccess(w, s.logs.Events())
		return
	}
	id, err := strconv.ParseInt(after, 10, 64)
	if err != nil || id < 0 {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "after must be a non-negative event id", nil)
		return
	}
	WriteSuccess(w, s.logs.EventsAfter(id))
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, console.CodeUnavailable,
			"Telemetry service not available", nil)
		return
	}

	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		WriteError(w, http.StatusInternalServerError, console.CodeInternal,
			"Failed to subscribe to telemetry stream", nil)
	}
}

// handleCameraStart handles POST /camera/start. Denied, unsupported and
// warming outcomes are errors carrying the resulting view.
func (s *Server) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	status, err := s.console.StartCamera(r.Context())
	view := s.console.View()
	if err != nil {
		WriteConsoleError(w, err, view)
		return
	}
	WriteSuccess(w, map[string]interface{}{"status": status, "view": view})
}

// handleCameraStop handles POST /camera/stop
func (s *Server) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if err := s.console.StopCamera(r.Context()); err != nil {
		WriteConsoleError(w, err, s.console.View())
		return
	}
	WriteSuccess(w, s.console.View())
}

// handleSnapshot handles POST /camera/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ref, err := s.console.Snapshot(r.Context())
	if err != nil {
		WriteConsoleError(w, err, s.console.View())
		return
	}
	WriteSuccess(w, ref)
}

// handleGetStill handles GET /still and streams the image bytes.
func (s *Server) handleGetStill(w http.ResponseWriter, r *http.Request) {
	ref := s.console.Still()
	if ref == nil {
		WriteConsoleError(w, console.ErrNoStill, nil)
		return
	}
	rc, err := ref.Open()
	if err != nil {
		WriteConsoleError(w, console.ErrNoStill, nil)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ref.MIME)
	w.Header().Set("Cache-Control", "no-store")
	if ref.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// handleUploadStill handles POST /still with a multipart "file" field.
func (s *Server) handleUploadStill(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "multipart/form-data body required", nil)
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "Malformed multipart body", nil)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "Malformed multipart body", nil)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		ref, err := s.console.IngestStillFromFile(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			WriteConsoleError(w, err, nil)
			return
		}
		WriteSuccess(w, ref)
		return
	}

	WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "multipart field \"file\" is required", nil)
}

// handleClearStill handles DELETE /still
func (s *Server) handleClearStill(w http.ResponseWriter, r *http.Request) {
	s.console.ClearStill(r.Context())
	WriteSuccess(w, s.console.View())
}

// handleStills handles GET /stills; ?limit=N bounds the result.
func (s *Server) handleStills(w http.ResponseWriter, r *http.Request) {
	if s.stills == nil {
		WriteError(w, http.StatusServiceUnavailable, console.CodeUnavailable, "Still vault not available", nil)
		return
	}

	limit := defaultStillsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	records, err := s.stills.List(r.Context(), limit)
	if err != nil {
		WriteConsoleError(w, err, nil)
		return
	}
	WriteSuccess(w, records)
}

// handleRemoteConnect handles POST /remote/connect. Pairing continues in the
// background; the response reports the view at acceptance.
func (s *Server) handleRemoteConnect(w http.ResponseWriter, r *http.Request) {
	if _, err := s.console.ConnectRemote(r.Context()); err != nil {
		WriteConsoleError(w, err, s.console.View())
		return
	}
	WriteAccepted(w, s.console.View())
}

// handleRemoteCapability handles PUT /remote/capability
func (s *Server) handleRemoteCapability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "enabled is required", nil)
		return
	}

	if err := s.console.SetRemoteCapability(r.Context(), *req.Enabled); err != nil {
		WriteConsoleError(w, err, s.console.View())
		return
	}
	WriteSuccess(w, s.console.View())
}

// handleVisibility handles POST /visibility
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hidden *bool `json:"hidden"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}
	if req.Hidden == nil {
		WriteError(w, http.StatusBadRequest, console.CodeBadRequest, "hidden is required", nil)
		return
	}

	if err := s.console.SetPageHidden(r.Context(), *req.Hidden); err != nil {
		WriteConsoleError(w, err, s.console.View())
		return
	}
	WriteSuccess(w, s.console.View())
}
