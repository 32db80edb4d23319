package server

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/config"
	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// Server handles HTTP, MJPEG and WebSocket connections for every session.
type Server struct {
	mgr      *orchestrator.Manager
	limiters *limiters

	maxFrameBytes  int64
	maxFramePixels int
	streamInterval time.Duration
	jpegQuality    int
}

// New creates a new server.
func New(mgr *orchestrator.Manager, cfg *config.Config) *Server {
	s := &Server{
		mgr:            mgr,
		limiters:       newLimiters(cfg.Server.PushRateLimit, cfg.Server.PushRateWindow),
		maxFrameBytes:  cfg.Server.MaxFrameBytes,
		maxFramePixels: cfg.Server.MaxFramePixels,
		streamInterval: cfg.Server.StreamInterval,
		jpegQuality:    cfg.Overlay.JPEGQuality,
	}
	if s.maxFrameBytes <= 0 {
		s.maxFrameBytes = DefaultMaxFrameBytes
	}
	if s.streamInterval <= 0 {
		s.streamInterval = DefaultStreamInterval
	}
	if s.jpegQuality <= 0 {
		s.jpegQuality = DefaultJPEGQuality
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.handlePushFrame)
	mux.HandleFunc("GET /api/sessions/{id}/state", s.handleState)
	mux.HandleFunc("PUT /api/sessions/{id}/mode", s.handleMode)
	mux.HandleFunc("GET /api/sessions/{id}/frame.jpg", s.handleFrame)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/sessions/{id}/history", s.handleHistory)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": len(s.mgr.List())})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var opts orchestrator.SessionOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&opts); err != nil && !stderrors.Is(err, io.EOF) {
			writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode session options"))
			return
		}
	}
	sess, err := s.mgr.Create(opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trace.Logger(r.Context()).Info("session created", "session", sess.ID, "source", sess.Source)
	writeJSON(w, http.StatusCreated, describe(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.mgr.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, describe(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.mgr.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	s.limiters.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePushFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.limiters.get(sess.ID).allow() {
		trace.Logger(r.Context()).Warn("rate limit exceeded", "session", sess.ID, "remote", r.RemoteAddr)
		writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "frame rate limit exceeded"))
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxFrameBytes))
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "read frame"))
		return
	}
	img, err := imageutil.DecodeMax(data, s.maxFramePixels)
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode frame"))
		return
	}
	if err := sess.PushFrame(img); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode mode"))
		return
	}
	mode, err := overlay.ParseMode(body.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess.SetMode(mode)
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	img, ok := sess.Render()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "no frame yet"))
		return
	}
	data, err := imageutil.EncodeJPEG(img, s.jpegQuality)
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeRenderFailure, "encode frame"))
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, sess.History().Recent(limit))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	sess, err := s.mgr.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func describe(sess *orchestrator.Session) SessionResponse {
	return SessionResponse{
		ID:        sess.ID,
		Source:    sess.Source,
		Namespace: sess.Namespace,
		Language:  sess.Language,
		Mode:      sess.Mode(),
		Version:   sess.State().Version,
	}
}

func stateOf(sess *orchestrator.Session) StateResponse {
	return StateResponse{
		RenderState: sess.State(),
		Session:     sess.ID,
		Mode:        sess.Mode(),
		Slot:        sess.SlotStats(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument, apperrors.CodeConfigInvalid, apperrors.CodeGeometryFailure:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeUnavailable, apperrors.CodeCaptureFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: string(apperrors.CodeInternal)}
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		resp.Code = string(appErr.Code)
		resp.Error = appErr.Message
	}
	if tc, ok := trace.FromContext(r.Context()); ok {
		resp.TraceID = tc.TraceID
	}
	status := httpStatus(apperrors.Code(resp.Code))
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}
