package gate_test

import (
	"testing"

	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/gate"
)

func practiceModule() catalog.Module {
	return catalog.Module{
		ID:    "module-2",
		Title: "Client Practice",
		Topics: []catalog.Topic{
			{Code: "M2-01", Title: "Intake Conversations"},
			{Code: "M2-02", Title: "Meal Plan Reviews"},
			{Code: "M2-03", Title: "Follow-up Sessions"},
			{Code: "M2-04", Title: "Case Documentation"},
		},
		Policy: catalog.ModulePolicy{PrerequisiteTopic: "M2-04"},
	}
}

func certModule() catalog.Module {
	return catalog.Module{
		ID:    "module-3",
		Title: "Certification",
		Topics: []catalog.Topic{
			{Code: "M3-01", Title: "Exam Preparation"},
		},
		Policy: catalog.ModulePolicy{
			SimulationBeforeAssessment: true,
			TerminalAssessment:         true,
			BriefingModal:              true,
		},
	}
}

func allDone(m catalog.Module) map[string]bool {
	done := make(map[string]bool, len(m.Topics))
	for _, t := range m.Topics {
		done[t.Code] = true
	}
	return done
}

func TestEvaluate_PrerequisiteBlocksEverything(t *testing.T) {
	m := practiceModule()

	// All other topics done, even the records logged: the named
	// prerequisite still blocks first.
	snap := gate.Snapshot{
		Completed:        map[string]bool{"M2-01": true, "M2-02": true, "M2-03": true},
		SimulationLogged: true,
		AssessmentLogged: true,
	}

	d := gate.Evaluate(m, "module-3", snap)
	if d.Action != gate.ActionBlocked {
		t.Fatalf("Evaluate() action = %v, want blocked", d.Action)
	}
	if d.MissingTopic != "M2-04" {
		t.Errorf("MissingTopic = %q, want M2-04", d.MissingTopic)
	}
	if d.Message == "" {
		t.Error("blocked decision has no message")
	}
	if d.NextModuleID != "" {
		t.Errorf("blocked decision carries NextModuleID %q", d.NextModuleID)
	}
}

func TestEvaluate_IncompleteTopicsBlock(t *testing.T) {
	m := practiceModule()
	done := allDone(m)
	delete(done, "M2-02")

	d := gate.Evaluate(m, "module-3", gate.Snapshot{Completed: done})
	if d.Action != gate.ActionBlocked {
		t.Fatalf("Evaluate() action = %v, want blocked", d.Action)
	}
	if d.MissingTopic != "" {
		t.Errorf("MissingTopic = %q, want empty for a general block", d.MissingTopic)
	}
}

func TestEvaluate_AdvanceWithoutPolicy(t *testing.T) {
	m := catalog.Module{
		ID:     "module-1",
		Topics: []catalog.Topic{{Code: "M1-01"}, {Code: "M1-02"}},
	}

	d := gate.Evaluate(m, "module-2", gate.Snapshot{Completed: allDone(m)})
	if d.Action != gate.ActionAdvance {
		t.Fatalf("Evaluate() action = %v, want advance", d.Action)
	}
	if d.NextModuleID != "module-2" {
		t.Errorf("NextModuleID = %q, want module-2", d.NextModuleID)
	}
}

func TestEvaluate_SimulationBeforeAssessment(t *testing.T) {
	m := certModule()
	snap := gate.Snapshot{Completed: allDone(m)}

	d := gate.Evaluate(m, "", snap)
	if d.Action != gate.ActionSimulation {
		t.Fatalf("Evaluate() action = %v, want simulation", d.Action)
	}

	// Logging the simulation moves the gate to the assessment, with the
	// briefing flag from the policy.
	snap.SimulationLogged = true
	d = gate.Evaluate(m, "", snap)
	if d.Action != gate.ActionAssessment {
		t.Fatalf("Evaluate() action = %v, want assessment", d.Action)
	}
	if !d.Briefing {
		t.Error("Briefing = false, want true per module policy")
	}

	// With a logged result the last module advances to the hub.
	snap.AssessmentLogged = true
	d = gate.Evaluate(m, "", snap)
	if d.Action != gate.ActionAdvance {
		t.Fatalf("Evaluate() action = %v, want advance", d.Action)
	}
	if d.NextModuleID != "" {
		t.Errorf("NextModuleID = %q, want empty (hub)", d.NextModuleID)
	}
}

func TestEvaluate_Reentrant(t *testing.T) {
	m := certModule()
	snap := gate.Snapshot{Completed: allDone(m), SimulationLogged: true}

	first := gate.Evaluate(m, "", snap)
	second := gate.Evaluate(m, "", snap)
	if first != second {
		t.Errorf("Evaluate() not stable: %+v then %+v", first, second)
	}
}
