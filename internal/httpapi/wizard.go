package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/veda-wellness/nutricert/internal/assignment"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

// wizardFor returns the trainee's live wizard for an assignment topic,
// creating it on first use. ok is false when the topic has no assignment or
// a submission already locked it.
func (s *Server) wizardFor(w http.ResponseWriter, r *http.Request, userID string, topic catalog.Topic) (*assignment.Wizard, bool) {
	if !topic.RequiresAssignment() {
		writeError(w, http.StatusBadRequest, "topic has no assignment")
		return nil, false
	}

	// A stored submission always wins over in-memory state.
	if _, found, err := s.submissions.Get(r.Context(), userID, topic.Code); err != nil {
		slog.Warn("submission read failed", "user_id", userID, "topic", topic.Code, "error", err)
	} else if found {
		writeJSON(w, http.StatusOK, assignment.View{Step: assignment.StepSubmitted.String()})
		return nil, false
	}

	key := sessionKey(userID, topic.Code)
	s.mu.Lock()
	defer s.mu.Unlock()

	if wiz, ok := s.wizards[key]; ok {
		return wiz, true
	}
	wiz, err := assignment.NewWizard(topic, userID, s.submissions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not start assignment")
		return nil, false
	}
	s.wizards[key] = wiz
	return wiz, true
}

func (s *Server) handleWizardView(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	wiz, ok := s.wizardFor(w, r, sess.UserID, topic)
	if !ok {
		return // response already written
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

type wizardAction struct {
	Action   string `json:"action"` // next, back, persona, toggle-peer, answer, next-question, prev-question, jump, submit
	Name     string `json:"name,omitempty"`
	Story    string `json:"story,omitempty"`
	Kind     string `json:"kind,omitempty"` // company or dietician, for toggle-peer
	Question int    `json:"question,omitempty"`
	Column   int    `json:"column,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (s *Server) handleWizardAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}

	var in wizardAction
	if !readJSON(w, r, &in) {
		return
	}

	wiz, ok := s.wizardFor(w, r, sess.UserID, topic)
	if !ok {
		return
	}

	var err error
	switch in.Action {
	case "next":
		err = wiz.Next()
	case "back":
		err = wiz.Back()
	case "persona":
		err = wiz.SetPersona(in.Name, in.Story)
	case "toggle-peer":
		switch in.Kind {
		case "company":
			err = wiz.TogglePeerCompany(in.Name)
		case "dietician":
			err = wiz.TogglePeerDietician(in.Name)
		default:
			writeError(w, http.StatusBadRequest, "kind must be company or dietician")
			return
		}
	case "answer":
		err = wiz.SetAnswer(in.Question, in.Column, in.Text)
	case "next-question":
		err = wiz.NextQuestion()
	case "prev-question":
		err = wiz.PrevQuestion()
	case "jump":
		err = wiz.JumpTo(in.Question)
	case "submit":
		err = wiz.Submit(r.Context())
		if err == nil {
			s.registry.Tracker(r.Context(), sess.UserID, topic).MarkAssignmentDone()
			telemetry.Emit(r.Context(), s.telemetry, telemetry.Event{
				UserID: sess.UserID,
				Kind:   "assignment_submitted",
				Data:   map[string]any{"topic": topic.Code},
			})
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, wiz.Snapshot())
	case errors.Is(err, assignment.ErrStepIncomplete):
		writeError(w, http.StatusConflict, "current step is incomplete")
	case errors.Is(err, assignment.ErrUnreachable):
		writeError(w, http.StatusConflict, "question not reachable")
	case errors.Is(err, assignment.ErrSubmitted):
		writeError(w, http.StatusConflict, "assignment already submitted")
	default:
		slog.Error("wizard action failed", "action", in.Action, "topic", topic.Code, "error", err)
		writeError(w, http.StatusBadGateway, "could not save, try again")
	}
}
