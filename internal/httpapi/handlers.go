package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/veda-wellness/nutricert/internal/auth"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/gate"
	"github.com/veda-wellness/nutricert/internal/progress"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !readJSON(w, r, &in) {
		return
	}

	user, err := s.auth.SignUp(r.Context(), in.Email, in.Name, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSignupDisabled):
			writeError(w, http.StatusForbidden, "signup is disabled")
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !readJSON(w, r, &in) {
		return
	}

	token, user, err := s.auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		slog.Error("sign-in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := s.auth.SignOut(r.Context(), in.Token); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// moduleView is a module plus the trainee's per-topic completion.
type moduleView struct {
	catalog.Module
	Progress []progress.TopicProgress `json:"progress"`
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Modules())
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}

	view := moduleView{Module: m, Progress: make([]progress.TopicProgress, 0, len(m.Topics))}
	for _, topic := range m.Topics {
		t := s.registry.Tracker(r.Context(), sess.UserID, topic)
		view.Progress = append(view.Progress, t.Snapshot())
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Search(q))
}

type topicView struct {
	catalog.Topic
	Progress progress.TopicProgress `json:"progress"`
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	t := s.registry.Tracker(r.Context(), sess.UserID, topic)
	writeJSON(w, http.StatusOK, topicView{Topic: topic, Progress: t.Snapshot()})
}

func (s *Server) handleMarkPhase(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	var in struct {
		Phase string `json:"phase"`
	}
	if !readJSON(w, r, &in) {
		return
	}

	t := s.registry.Tracker(r.Context(), sess.UserID, topic)
	switch in.Phase {
	case "material":
		t.MarkMaterialReviewed()
	case "simulation":
		t.MarkSimulationDone()
	case "assignment":
		t.MarkAssignmentDone()
	default:
		writeError(w, http.StatusBadRequest, "phase must be material, simulation or assignment")
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *Server) handleToggleComplete(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	t := s.registry.Tracker(r.Context(), sess.UserID, topic)
	wasCompleted := t.Completed()
	if err := t.ToggleComplete(r.Context()); err != nil {
		if errors.Is(err, progress.ErrNotReady) {
			writeError(w, http.StatusConflict, "topic is not ready to be marked complete")
			return
		}
		slog.Error("toggle complete failed", "user_id", sess.UserID, "topic", topic.Code, "error", err)
		writeError(w, http.StatusBadGateway, "could not persist completion, try again")
		return
	}

	kind := "topic_completed"
	if wasCompleted {
		kind = "topic_uncompleted"
	}
	telemetry.Emit(r.Context(), s.telemetry, telemetry.Event{
		UserID: sess.UserID,
		Kind:   kind,
		Data:   map[string]any{"topic": topic.Code},
	})
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// handleContinue runs the module gate. Store reads degrade to "absent" with
// a warning: the gate then re-presents a precondition instead of failing the
// whole request.
func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}

	snap := gate.Snapshot{}
	completed, err := s.progStore.CompletedTopics(r.Context(), sess.UserID)
	if err != nil {
		slog.Warn("completion read failed during gate", "user_id", sess.UserID, "error", err)
		completed = map[string]bool{}
	}
	snap.Completed = completed

	if m.Policy.SimulationBeforeAssessment {
		has, err := s.records.HasSimulation(r.Context(), sess.UserID, m.SimulationCode())
		if err != nil {
			slog.Warn("simulation log read failed during gate", "user_id", sess.UserID, "error", err)
		}
		snap.SimulationLogged = has
	}
	if m.Policy.TerminalAssessment {
		has, err := s.records.HasAssessment(r.Context(), sess.UserID, m.AssessmentCode())
		if err != nil {
			slog.Warn("assessment log read failed during gate", "user_id", sess.UserID, "error", err)
		}
		snap.AssessmentLogged = has
	}

	nextID := ""
	if next, ok := s.catalog.NextModule(m.ID); ok {
		nextID = next.ID
	}

	decision := gate.Evaluate(m, nextID, snap)
	if decision.Action == gate.ActionAdvance {
		telemetry.Emit(r.Context(), s.telemetry, telemetry.Event{
			UserID: sess.UserID,
			Kind:   "module_advanced",
			Data:   map[string]any{"module": m.ID, "next": decision.NextModuleID},
		})
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	var in struct {
		Answer string `json:"answer"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if in.Answer == "" {
		writeError(w, http.StatusBadRequest, "answer is empty")
		return
	}

	rubric := topic.Outcome
	if rubric == "" {
		rubric = topic.Title
	}
	grade, err := s.grader.GradeAnswer(r.Context(), in.Answer, rubric, sess.UserID)
	if err != nil {
		slog.Error("grading failed", "topic", topic.Code, "error", err)
		writeError(w, http.StatusBadGateway, "grading unavailable, try again")
		return
	}
	writeJSON(w, http.StatusOK, grade)
}
