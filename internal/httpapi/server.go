// Package httpapi exposes the training platform over HTTP: auth, the
// syllabus catalog, per-topic progress, the module gate, the assignment
// wizard, retention checks and the live simulation socket.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/veda-wellness/nutricert/internal/assignment"
	"github.com/veda-wellness/nutricert/internal/auth"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/progress"
	"github.com/veda-wellness/nutricert/internal/quiz"
	"github.com/veda-wellness/nutricert/internal/records"
	"github.com/veda-wellness/nutricert/internal/simulation"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

// HealthChecker reports liveness of a backing service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the server's tunables and dependencies.
type Config struct {
	Catalog      *catalog.Loader
	Auth         *auth.Service
	Progress     progress.Store
	Records      records.Store
	Submissions  assignment.SubmissionStore
	Generator    *quiz.Generator
	Grader       *quiz.Grader
	Simulation   *simulation.Engine
	Telemetry    telemetry.Logger
	QuizDuration int // countdown ticks per session (default 600)
	HealthChecks []HealthChecker
}

// Server holds all route handlers and the in-memory wizard and quiz session
// registries. Sessions are per (trainee, code) and live until submitted or
// finalized; completed state is always re-read from the stores.
type Server struct {
	catalog     *catalog.Loader
	auth        *auth.Service
	progStore   progress.Store
	registry    *progress.Registry
	records     records.Store
	submissions assignment.SubmissionStore
	generator   *quiz.Generator
	grader      *quiz.Grader
	sim         *simulation.Engine
	telemetry   telemetry.Logger
	health      []HealthChecker

	quizDuration int

	mu       sync.Mutex
	wizards  map[string]*assignment.Wizard
	sessions map[string]*quiz.Session
	starting map[string]bool // quiz keys with generation in flight
}

// New creates a Server and its route mux.
func New(cfg Config) *Server {
	duration := cfg.QuizDuration
	if duration <= 0 {
		duration = 600
	}
	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.NopLogger{}
	}
	return &Server{
		catalog:      cfg.Catalog,
		auth:         cfg.Auth,
		progStore:    cfg.Progress,
		registry:     progress.NewRegistry(cfg.Progress),
		records:      cfg.Records,
		submissions:  cfg.Submissions,
		generator:    cfg.Generator,
		grader:       cfg.Grader,
		sim:          cfg.Simulation,
		telemetry:    tel,
		health:       cfg.HealthChecks,
		quizDuration: duration,
		wizards:      make(map[string]*assignment.Wizard),
		sessions:     make(map[string]*quiz.Session),
		starting:     make(map[string]bool),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)

	authed := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(auth.RequireAdmin(h))
	}

	mux.Handle("GET /api/modules", authed(s.handleListModules))
	mux.Handle("GET /api/modules/{id}", authed(s.handleGetModule))
	mux.Handle("GET /api/search", authed(s.handleSearch))

	mux.Handle("GET /api/topics/{code}", authed(s.handleGetTopic))
	mux.Handle("POST /api/topics/{code}/mark", authed(s.handleMarkPhase))
	mux.Handle("POST /api/topics/{code}/toggle-complete", authed(s.handleToggleComplete))

	mux.Handle("POST /api/modules/{id}/continue", authed(s.handleContinue))

	mux.Handle("GET /api/topics/{code}/assignment", authed(s.handleWizardView))
	mux.Handle("POST /api/topics/{code}/assignment", authed(s.handleWizardAction))

	mux.Handle("POST /api/topics/{code}/quiz/start", authed(s.handleTopicQuizStart))
	mux.Handle("POST /api/topics/{code}/quiz/answer", authed(s.handleTopicQuizAnswer))
	mux.Handle("GET /api/topics/{code}/quiz", authed(s.handleTopicQuizState))
	mux.Handle("POST /api/topics/{code}/grade", authed(s.handleGradeAnswer))

	mux.Handle("POST /api/modules/{id}/assessment/start", authed(s.handleAssessmentStart))
	mux.Handle("POST /api/modules/{id}/assessment/answer", authed(s.handleAssessmentAnswer))
	mux.Handle("GET /api/modules/{id}/assessment", authed(s.handleAssessmentState))

	mux.Handle("GET /api/topics/{code}/simulation/ws", authed(s.handleTopicSimWS))
	mux.Handle("GET /api/topics/{code}/simulation/transcript", authed(s.handleTopicSimTranscript))
	mux.Handle("POST /api/topics/{code}/simulation/confirm", authed(s.handleTopicSimConfirm))
	mux.Handle("GET /api/modules/{id}/simulation/ws", authed(s.handleModuleSimWS))
	mux.Handle("GET /api/modules/{id}/simulation/transcript", authed(s.handleModuleSimTranscript))
	mux.Handle("POST /api/modules/{id}/simulation/confirm", authed(s.handleModuleSimConfirm))

	mux.Handle("GET /api/admin/submissions.xlsx", admin(s.handleExportSubmissions))

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, hc := range s.health {
		if err := hc.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func sessionKey(userID, code string) string {
	return userID + "\x00" + code
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func mustSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no session")
	}
	return sess, ok
}
