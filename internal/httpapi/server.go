// Package httpapi exposes roadmap views, topic content and quiz completion
// over HTTP for the web renderer.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/LikhithSP/Knowledge-Tree/internal/orchestrator"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
	"github.com/LikhithSP/Knowledge-Tree/internal/realtime"
	"github.com/LikhithSP/Knowledge-Tree/internal/report"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

// UserHeader carries the authenticated user id, set by the upstream
// identity proxy.
const UserHeader = "X-User-ID"

// HealthChecker is implemented by backing services probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// exportFunc renders a user's progress workbook.
type exportFunc func(w io.Writer, userID string, roadmaps []orchestrator.RoadmapProgress, summary progress.Summary) error

// Server routes HTTP requests to the orchestration service.
type Server struct {
	svc    *orchestrator.Service
	checks map[string]HealthChecker
	wsOpts *websocket.AcceptOptions
	export exportFunc
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a named dependency to /readyz.
func WithHealthCheck(name string, hc HealthChecker) Option {
	return func(s *Server) { s.checks[name] = hc }
}

// WithOriginPatterns allows cross-origin WebSocket connections from hosts
// matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.wsOpts.OriginPatterns = patterns }
}

// New creates a server.
func New(svc *orchestrator.Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		checks: make(map[string]HealthChecker),
		wsOpts: &websocket.AcceptOptions{},
		export: report.Write,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /roadmaps", s.handleListRoadmaps)
	mux.HandleFunc("GET /roadmaps/{id}/view", s.requireUser(s.handleView))
	mux.HandleFunc("GET /roadmaps/{id}/live", s.requireUser(s.handleLive))
	mux.HandleFunc("GET /topics/{id}", s.requireUser(s.handleTopic))
	mux.HandleFunc("POST /topics/{id}/quiz", s.requireUser(s.handleQuiz))
	mux.HandleFunc("POST /topics/{id}/complete", s.requireUser(s.handleComplete))
	mux.HandleFunc("GET /me/summary", s.requireUser(s.handleSummary))
	mux.HandleFunc("GET /me/progress.xlsx", s.requireUser(s.handleExport))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next(w, r, userID)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, hc := range s.checks {
		if err := hc.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "dependency": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	roadmaps, err := s.svc.Content().ListRoadmaps(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if roadmaps == nil {
		roadmaps = []roadmap.Roadmap{}
	}
	writeJSON(w, http.StatusOK, roadmaps)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := s.svc.Open(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.View())
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := s.svc.Open(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	realtime.Serve(w, r, o, s.wsOpts)
}

type topicResponse struct {
	Topic     *roadmap.Topic `json:"topic"`
	Status    string         `json:"status"`
	Completed bool           `json:"completed"`
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	o, err := s.svc.OpenForTopic(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	t, err := o.Click(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status, _ := o.Status(id)
	writeJSON(w, http.StatusOK, topicResponse{Topic: t, Status: string(status), Completed: o.IsCompleted(id)})
}

type quizRequest struct {
	Answers map[string]int `json:"answers"`
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request, userID string) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := r.PathValue("id")
	o, err := s.svc.OpenForTopic(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := o.SubmitQuiz(r.Context(), id, req.Answers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type completeRequest struct {
	Score *int `json:"score"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, userID string) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"score\": <0-100>}")
		return
	}
	id := r.PathValue("id")
	o, err := s.svc.OpenForTopic(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := o.Complete(r.Context(), id, *req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, userID string) {
	summary, err := s.svc.Summary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, userID string) {
	summary, err := s.svc.Summary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	roadmaps, err := s.svc.Progress(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Render fully before the status line so a failed export is a 500, not a
	// truncated download.
	var buf bytes.Buffer
	if err := s.export(&buf, userID, roadmaps, summary); err != nil {
		writeServiceError(w, fmt.Errorf("export progress for %s: %w", userID, err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="progress.xlsx"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("progress export not delivered", "user_id", userID, "error", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roadmap.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrTopicLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, orchestrator.ErrInvalidScore), errors.Is(err, roadmap.ErrInvalidQuiz):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, progress.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
