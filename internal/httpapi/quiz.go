package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/quiz"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

// quizTickInterval is the real-time length of one countdown tick.
const quizTickInterval = time.Second

func (s *Server) handleTopicQuizStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	s.startQuiz(w, r, sess.UserID, topic, topic.Code+".quiz")
}

func (s *Server) handleTopicQuizAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	s.answerQuiz(w, r, sess.UserID, r.PathValue("code")+".quiz")
}

func (s *Server) handleTopicQuizState(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	s.quizState(w, r, sess.UserID, r.PathValue("code")+".quiz")
}

func (s *Server) handleAssessmentStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	if !m.Policy.TerminalAssessment {
		writeError(w, http.StatusBadRequest, "module has no terminal assessment")
		return
	}
	s.startQuiz(w, r, sess.UserID, assessmentSource(m), m.AssessmentCode())
}

func (s *Server) handleAssessmentAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	s.answerQuiz(w, r, sess.UserID, m.AssessmentCode())
}

func (s *Server) handleAssessmentState(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	s.quizState(w, r, sess.UserID, m.AssessmentCode())
}

// assessmentSource folds a module's topic material into one generation
// source for the terminal assessment.
func assessmentSource(m catalog.Module) catalog.Topic {
	var content strings.Builder
	for _, t := range m.Topics {
		content.WriteString(t.Title)
		content.WriteString("\n")
		content.WriteString(t.Content)
		content.WriteString("\n\n")
	}
	return catalog.Topic{
		Code:    m.AssessmentCode(),
		Title:   m.Title,
		Content: content.String(),
	}
}

// startQuiz creates (or returns) the trainee's session for the given scoped
// code. A session already running is returned as-is so double-clicking
// "start" never discards progress; a start racing another's generation call
// is refused rather than creating a second session; a result already logged
// short-circuits to the locked view.
func (s *Server) startQuiz(w http.ResponseWriter, r *http.Request, userID string, source catalog.Topic, code string) {
	if has, err := s.records.HasAssessment(r.Context(), userID, code); err != nil {
		slog.Warn("assessment read failed", "user_id", userID, "code", code, "error", err)
	} else if has {
		writeJSON(w, http.StatusOK, quiz.View{Done: true})
		return
	}

	key := sessionKey(userID, code)
	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok && !existing.Done() {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, existing.State())
		return
	}
	if s.starting[key] {
		// A concurrent start already owns the generation call; spawning a
		// second session here would orphan one countdown and let it log an
		// empty result over the real one.
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "quiz is starting, try again")
		return
	}
	s.starting[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.starting, key)
		s.mu.Unlock()
	}()

	generated, err := s.generator.Generate(r.Context(), source, userID)
	if err != nil {
		slog.Error("quiz generation failed", "code", code, "error", err)
		writeError(w, http.StatusBadGateway, "quiz generation unavailable, try again")
		return
	}

	var session *quiz.Session
	session = quiz.NewSession(generated, userID, code, s.quizDuration, s.records, func(res quiz.Result) {
		telemetry.Emit(context.Background(), s.telemetry, telemetry.Event{
			UserID: userID,
			Kind:   "quiz_finalized",
			Data:   map[string]any{"code": code, "score": res.Score, "total": res.Total},
		})
		s.mu.Lock()
		// Only drop the entry this session still owns.
		if s.sessions[key] == session {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.sessions[key] = session
	s.mu.Unlock()

	if err := session.Start(r.Context()); err != nil {
		slog.Error("quiz start failed", "code", code, "error", err)
		writeError(w, http.StatusBadGateway, "could not start quiz, try again")
		return
	}
	if !session.Done() {
		// The countdown runs independently of answer submissions.
		go session.Run(context.Background(), quizTickInterval)
	}

	writeJSON(w, http.StatusOK, session.State())
}

func (s *Server) answerQuiz(w http.ResponseWriter, r *http.Request, userID, code string) {
	var in struct {
		Answer string `json:"answer"`
	}
	if !readJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[sessionKey(userID, code)]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no active quiz session")
		return
	}

	if err := session.Answer(r.Context(), in.Answer); err != nil {
		slog.Error("quiz answer failed", "code", code, "error", err)
		writeError(w, http.StatusBadGateway, "could not record answer, try again")
		return
	}
	writeJSON(w, http.StatusOK, session.State())
}

func (s *Server) quizState(w http.ResponseWriter, r *http.Request, userID, code string) {
	s.mu.Lock()
	session, ok := s.sessions[sessionKey(userID, code)]
	s.mu.Unlock()
	if ok {
		writeJSON(w, http.StatusOK, session.State())
		return
	}

	// No live session: a logged result still shows the locked view.
	if has, err := s.records.HasAssessment(r.Context(), userID, code); err == nil && has {
		writeJSON(w, http.StatusOK, quiz.View{Done: true})
		return
	}
	writeError(w, http.StatusNotFound, "no active quiz session")
}
