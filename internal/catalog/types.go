// Package catalog holds the static syllabus: ordered modules, their topics,
// and the per-module gating policy. Catalog content is loaded once from YAML
// and immutable at runtime.
package catalog

// ModuleKind tags the coarse role of a module within the programme.
type ModuleKind string

const (
	KindStandard   ModuleKind = "standard"
	KindResource   ModuleKind = "resource"
	KindChecklist  ModuleKind = "checklist"
	KindPreJoining ModuleKind = "pre-joining"
)

// Module represents one training stage: an ordered group of topics.
type Module struct {
	ID     string       `yaml:"id"`
	Title  string       `yaml:"title"`
	Kind   ModuleKind   `yaml:"kind"`
	Order  int          `yaml:"order"`
	Topics []Topic      `yaml:"topics"`
	Policy ModulePolicy `yaml:"policy"`
}

// ModulePolicy declares the module-specific gating rules consumed by the
// module gate. A zero policy means "advance once all topics are complete".
type ModulePolicy struct {
	// PrerequisiteTopic names a topic code that must be completed before
	// the gate evaluates anything else.
	PrerequisiteTopic string `yaml:"prerequisite_topic"`
	// SimulationBeforeAssessment requires a logged standalone simulation
	// attempt before the terminal assessment is offered.
	SimulationBeforeAssessment bool `yaml:"simulation_before_assessment"`
	// TerminalAssessment requires a logged assessment result before the
	// next module unlocks.
	TerminalAssessment bool `yaml:"terminal_assessment"`
	// BriefingModal shows a rules briefing before the assessment starts.
	BriefingModal bool `yaml:"briefing_modal"`
}

// Topic is the smallest unit of curriculum content within a module.
type Topic struct {
	Code         string          `yaml:"code"`
	Title        string          `yaml:"title"`
	Content      string          `yaml:"content"`
	Outcome      string          `yaml:"outcome"`
	Links        []string        `yaml:"links"`
	HasLive      bool            `yaml:"has_live"`
	IsAssignment bool            `yaml:"is_assignment"`
	Assignment   *AssignmentSpec `yaml:"assignment"`
}

// AssignmentSpec holds the peer-audit wizard content embedded in an
// assignment-type topic.
type AssignmentSpec struct {
	Questions      []string `yaml:"questions"`
	ExamplePersona string   `yaml:"example_persona"`
}

// RequiresMaterial reports whether the material-review phase gates this
// topic. Assignment topics replace passive review with the wizard.
func (t Topic) RequiresMaterial() bool {
	return !t.IsAssignment
}

// RequiresSimulation reports whether a live simulation gates this topic.
func (t Topic) RequiresSimulation() bool {
	return t.HasLive
}

// RequiresAssignment reports whether the peer-audit wizard gates this topic.
func (t Topic) RequiresAssignment() bool {
	return t.IsAssignment
}

// AssessmentCode is the module-scoped key under which a terminal assessment
// result is logged.
func (m Module) AssessmentCode() string {
	return m.ID + ".assessment"
}

// SimulationCode is the module-scoped key under which a standalone
// simulation attempt is logged.
func (m Module) SimulationCode() string {
	return m.ID + ".simulation"
}

// HasTopic reports whether the module contains the given topic code.
func (m Module) HasTopic(code string) bool {
	for _, t := range m.Topics {
		if t.Code == code {
			return true
		}
	}
	return false
}
