// Package gate decides what happens when a trainee asks to continue past a
// module: block with an actionable message, require a simulation or the
// terminal assessment, or advance.
package gate

import (
	"fmt"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

// Action is the kind of decision the gate produced.
type Action int

const (
	// ActionBlocked means navigation is denied; Decision.Message says why.
	ActionBlocked Action = iota
	// ActionSimulation means a standalone simulation must be practiced
	// and confirmed before re-running the gate.
	ActionSimulation
	// ActionAssessment means the terminal assessment must be taken.
	ActionAssessment
	// ActionAdvance means navigation proceeds to Decision.NextModuleID,
	// or to the hub when it is empty.
	ActionAdvance
)

func (a Action) String() string {
	switch a {
	case ActionBlocked:
		return "blocked"
	case ActionSimulation:
		return "simulation"
	case ActionAssessment:
		return "assessment"
	case ActionAdvance:
		return "advance"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Action Action `json:"action"`
	// Message is the user-facing reason for a block.
	Message string `json:"message,omitempty"`
	// MissingTopic is set when a named prerequisite topic blocks the gate.
	MissingTopic string `json:"missing_topic,omitempty"`
	// Briefing is set on assessment decisions when the module policy asks
	// for a rules briefing first.
	Briefing bool `json:"briefing,omitempty"`
	// NextModuleID is set on advance; empty means the hub.
	NextModuleID string `json:"next_module_id,omitempty"`
}

// Snapshot is everything the gate reads: the trainee's completed-topic set
// and the two existence logs, resolved for this module's scoped codes.
// Callers build it fresh per evaluation; the gate itself holds no state.
type Snapshot struct {
	Completed        map[string]bool
	SimulationLogged bool
	AssessmentLogged bool
}

// Evaluate runs the gate for one module. Checks run in order and
// short-circuit; the function is pure, so re-running after satisfying one
// precondition re-evaluates everything from the top. nextModuleID is the
// catalog successor ("" for the last module).
func Evaluate(m catalog.Module, nextModuleID string, snap Snapshot) Decision {
	// 1. A named prerequisite topic blocks everything else.
	if pre := m.Policy.PrerequisiteTopic; pre != "" && !snap.Completed[pre] {
		title := pre
		for _, t := range m.Topics {
			if t.Code == pre {
				title = t.Title
				break
			}
		}
		return Decision{
			Action:       ActionBlocked,
			Message:      fmt.Sprintf("Complete %q before continuing.", title),
			MissingTopic: pre,
		}
	}

	// 2. Every topic in the module must be completed.
	for _, t := range m.Topics {
		if !snap.Completed[t.Code] {
			return Decision{
				Action:  ActionBlocked,
				Message: "Complete all sections in this module to continue.",
			}
		}
	}

	// 3. A simulation-first module needs a logged attempt.
	if m.Policy.SimulationBeforeAssessment && !snap.SimulationLogged {
		return Decision{Action: ActionSimulation}
	}

	// 4. A terminal assessment must have a logged result.
	if m.Policy.TerminalAssessment && !snap.AssessmentLogged {
		return Decision{
			Action:   ActionAssessment,
			Briefing: m.Policy.BriefingModal,
		}
	}

	// 5. Advance.
	return Decision{
		Action:       ActionAdvance,
		NextModuleID: nextModuleID,
	}
}
