package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/veda-wellness/nutricert/internal/assignment"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/telemetry"
)

func (s *Server) handleTopicSimWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	if !topic.RequiresSimulation() {
		writeError(w, http.StatusBadRequest, "topic has no live simulation")
		return
	}
	s.sim.HandleWS(w, r, sess.UserID, topic)
}

// handleTopicSimConfirm ends the practice run and marks the topic's
// simulation phase. The practice is also logged under the topic code so it
// survives restarts.
func (s *Server) handleTopicSimConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	if !topic.RequiresSimulation() {
		writeError(w, http.StatusBadRequest, "topic has no live simulation")
		return
	}

	if err := s.sim.ConfirmPracticed(r.Context(), sess.UserID, topic.Code, topic.Code); err != nil {
		slog.Error("simulation confirm failed", "topic", topic.Code, "error", err)
		writeError(w, http.StatusBadGateway, "could not record practice, try again")
		return
	}

	t := s.registry.Tracker(r.Context(), sess.UserID, topic)
	t.MarkSimulationDone()
	telemetry.Emit(r.Context(), s.telemetry, telemetry.Event{
		UserID: sess.UserID,
		Kind:   "simulation_practiced",
		Data:   map[string]any{"topic": topic.Code},
	})
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// handleTopicSimTranscript returns the live session's transcript so a
// trainee rejoining the socket can restore the conversation.
func (s *Server) handleTopicSimTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	topic, ok := s.catalog.GetTopic(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	if !topic.RequiresSimulation() {
		writeError(w, http.StatusBadRequest, "topic has no live simulation")
		return
	}

	turns, ok := s.sim.Transcript(r.Context(), sess.UserID, topic.Code)
	if !ok {
		writeError(w, http.StatusNotFound, "no active simulation session")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// moduleSimTopic picks the persona source for a module-level standalone
// simulation: the last topic carries the most advanced material.
func moduleSimTopic(m catalog.Module) (catalog.Topic, bool) {
	if len(m.Topics) == 0 {
		return catalog.Topic{}, false
	}
	return m.Topics[len(m.Topics)-1], true
}

func (s *Server) handleModuleSimWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	if !m.Policy.SimulationBeforeAssessment {
		writeError(w, http.StatusBadRequest, "module has no standalone simulation")
		return
	}
	topic, ok := moduleSimTopic(m)
	if !ok {
		writeError(w, http.StatusBadRequest, "module has no topics")
		return
	}
	s.sim.HandleWS(w, r, sess.UserID, topic)
}

func (s *Server) handleModuleSimTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	if !m.Policy.SimulationBeforeAssessment {
		writeError(w, http.StatusBadRequest, "module has no standalone simulation")
		return
	}
	topic, ok := moduleSimTopic(m)
	if !ok {
		writeError(w, http.StatusBadRequest, "module has no topics")
		return
	}

	turns, ok := s.sim.Transcript(r.Context(), sess.UserID, topic.Code)
	if !ok {
		writeError(w, http.StatusNotFound, "no active simulation session")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleModuleSimConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	m, ok := s.catalog.GetModule(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	if !m.Policy.SimulationBeforeAssessment {
		writeError(w, http.StatusBadRequest, "module has no standalone simulation")
		return
	}
	topic, ok := moduleSimTopic(m)
	if !ok {
		writeError(w, http.StatusBadRequest, "module has no topics")
		return
	}

	if err := s.sim.ConfirmPracticed(r.Context(), sess.UserID, topic.Code, m.SimulationCode()); err != nil {
		slog.Error("module simulation confirm failed", "module", m.ID, "error", err)
		writeError(w, http.StatusBadGateway, "could not record practice, try again")
		return
	}

	telemetry.Emit(r.Context(), s.telemetry, telemetry.Event{
		UserID: sess.UserID,
		Kind:   "simulation_practiced",
		Data:   map[string]any{"module": m.ID},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "practiced"})
}

func (s *Server) handleExportSubmissions(w http.ResponseWriter, r *http.Request) {
	questions := make(map[string][]string)
	for _, m := range s.catalog.Modules() {
		for _, t := range m.Topics {
			if t.Assignment != nil {
				questions[t.Code] = t.Assignment.Questions
			}
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="submissions.xlsx"`)
	if err := assignment.ExportXLSX(r.Context(), s.submissions, questions, w); err != nil {
		slog.Error("submission export failed", "error", err)
	}
}
