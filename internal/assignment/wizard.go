// Package assignment implements the four-step peer-audit wizard used by
// assignment-type topics: an optional persona example, the trainee's own
// persona, peer-entity selection, and a per-question answer matrix across
// three entities, ending in one immutable submission.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

// Step identifies the wizard's current stage.
type Step int

const (
	StepIntroPersona Step = iota
	StepDefinePersona
	StepSelectPeers
	StepAnswerMatrix
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepIntroPersona:
		return "intro-persona"
	case StepDefinePersona:
		return "define-persona"
	case StepSelectPeers:
		return "select-peers"
	case StepAnswerMatrix:
		return "answer-matrix"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// EntityCols is the width of every answer row: the trainee's own practice
// plus the two selected peers.
const EntityCols = 3

// peerLimit caps each peer category.
const peerLimit = 2

var (
	// ErrStepIncomplete is returned when a forward transition's validation
	// gate is not satisfied.
	ErrStepIncomplete = errors.New("current step is incomplete")
	// ErrSubmitted is returned by mutating calls after the wizard locked.
	ErrSubmitted = errors.New("assignment already submitted")
	// ErrUnreachable is returned by JumpTo for a question that is neither
	// complete nor current.
	ErrUnreachable = errors.New("question not reachable")
)

// Wizard drives one trainee's pass through an assignment topic. All methods
// are safe for concurrent use; the wizard owns its state exclusively until
// Submit hands it to the store.
type Wizard struct {
	topic  catalog.Topic
	userID string
	store  SubmissionStore

	mu             sync.Mutex
	step           Step
	personaName    string
	personaStory   string
	peerCompanies  []string
	peerDieticians []string
	answers        [][]string
	question       int
}

// NewWizard creates a wizard for an assignment topic. It starts at the
// persona example when the topic carries one, otherwise directly at the
// trainee's own persona.
func NewWizard(topic catalog.Topic, userID string, store SubmissionStore) (*Wizard, error) {
	if topic.Assignment == nil || len(topic.Assignment.Questions) == 0 {
		return nil, fmt.Errorf("topic %s has no assignment questions", topic.Code)
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	answers := make([][]string, len(topic.Assignment.Questions))
	for i := range answers {
		answers[i] = make([]string, EntityCols)
	}

	step := StepDefinePersona
	if topic.Assignment.ExamplePersona != "" {
		step = StepIntroPersona
	}

	return &Wizard{
		topic:   topic,
		userID:  userID,
		store:   store,
		step:    step,
		answers: answers,
	}, nil
}

// Step returns the current stage.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Questions returns the topic's assignment questions in order.
func (w *Wizard) Questions() []string {
	return w.topic.Assignment.Questions
}

// ExamplePersona returns the optional worked example shown on the intro step.
func (w *Wizard) ExamplePersona() string {
	return w.topic.Assignment.ExamplePersona
}

// SetPersona records the trainee's own persona. Both fields may be edited
// freely until submission.
func (w *Wizard) SetPersona(name, story string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	w.personaName = name
	w.personaStory = story
	return nil
}

// TogglePeerCompany adds or removes a peer company. Selecting a third when
// two are chosen is a no-op; re-selecting a chosen one deselects it.
func (w *Wizard) TogglePeerCompany(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	w.peerCompanies = togglePeer(w.peerCompanies, name)
	return nil
}

// TogglePeerDietician adds or removes a peer dietician with the same
// semantics as TogglePeerCompany.
func (w *Wizard) TogglePeerDietician(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	w.peerDieticians = togglePeer(w.peerDieticians, name)
	return nil
}

func togglePeer(chosen []string, name string) []string {
	for i, c := range chosen {
		if c == name {
			return append(chosen[:i:i], chosen[i+1:]...)
		}
	}
	if len(chosen) >= peerLimit {
		return chosen
	}
	return append(chosen, name)
}

// Next advances one stage, enforcing the gate of the current stage.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepIntroPersona:
		w.step = StepDefinePersona
	case StepDefinePersona:
		if w.personaName == "" || w.personaStory == "" {
			return ErrStepIncomplete
		}
		w.step = StepSelectPeers
	case StepSelectPeers:
		if len(w.peerCompanies) != peerLimit || len(w.peerDieticians) != peerLimit {
			return ErrStepIncomplete
		}
		w.step = StepAnswerMatrix
	case StepAnswerMatrix:
		return ErrStepIncomplete // leaving the matrix goes through Submit
	case StepSubmitted:
		return ErrSubmitted
	}
	return nil
}

// Back returns to the previous stage. Backward navigation never loses data
// and is always allowed before submission.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepDefinePersona:
		if w.topic.Assignment.ExamplePersona != "" {
			w.step = StepIntroPersona
		}
	case StepSelectPeers:
		w.step = StepDefinePersona
	case StepAnswerMatrix:
		w.step = StepSelectPeers
	case StepSubmitted:
		return ErrSubmitted
	}
	return nil
}

// SetAnswer writes one cell of the answer matrix.
func (w *Wizard) SetAnswer(question, column int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	if question < 0 || question >= len(w.answers) {
		return fmt.Errorf("question %d out of range", question)
	}
	if column < 0 || column >= EntityCols {
		return fmt.Errorf("column %d out of range", column)
	}
	w.answers[question][column] = text
	return nil
}

// Question returns the index of the current question.
func (w *Wizard) Question() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.question
}

// NextQuestion advances the question pointer. It requires all three cells of
// the current question to be filled.
func (w *Wizard) NextQuestion() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	if !rowComplete(w.answers[w.question]) {
		return ErrStepIncomplete
	}
	if w.question < len(w.answers)-1 {
		w.question++
	}
	return nil
}

// PrevQuestion moves the pointer back; always allowed.
func (w *Wizard) PrevQuestion() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	if w.question > 0 {
		w.question--
	}
	return nil
}

// JumpTo moves the pointer directly to a question. Only questions that are
// already complete, or the current one, are reachable.
func (w *Wizard) JumpTo(question int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepSubmitted {
		return ErrSubmitted
	}
	if question < 0 || question >= len(w.answers) {
		return fmt.Errorf("question %d out of range", question)
	}
	if question != w.question && !rowComplete(w.answers[question]) {
		return ErrUnreachable
	}
	w.question = question
	return nil
}

func rowComplete(row []string) bool {
	for _, cell := range row {
		if cell == "" {
			return false
		}
	}
	return true
}

// CanSubmit reports whether every cell of the matrix is filled.
func (w *Wizard) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.matrixComplete()
}

func (w *Wizard) matrixComplete() bool {
	for _, row := range w.answers {
		if !rowComplete(row) {
			return false
		}
	}
	return true
}

// Submit validates the full matrix and persists one immutable submission.
// On store failure the wizard stays in the answer matrix so the trainee can
// retry without re-entering anything. Repeated calls after success return
// the locked state without writing again.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepSubmitted {
		return nil
	}
	if w.step != StepAnswerMatrix {
		return ErrStepIncomplete
	}
	if !w.matrixComplete() {
		return ErrStepIncomplete
	}

	answers := make([][]string, len(w.answers))
	for i, row := range w.answers {
		answers[i] = append([]string(nil), row...)
	}

	sub := Submission{
		ID:             uuid.NewString(),
		UserID:         w.userID,
		TopicCode:      w.topic.Code,
		PersonaName:    w.personaName,
		PersonaStory:   w.personaStory,
		PeerCompanies:  append([]string(nil), w.peerCompanies...),
		PeerDieticians: append([]string(nil), w.peerDieticians...),
		Answers:        answers,
		SubmittedAt:    time.Now(),
	}

	if err := w.store.Save(ctx, sub); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	w.step = StepSubmitted
	return nil
}

// View is a read-only snapshot of the wizard for rendering.
type View struct {
	Step           string     `json:"step"`
	ExamplePersona string     `json:"example_persona,omitempty"`
	PersonaName    string     `json:"persona_name"`
	PersonaStory   string     `json:"persona_story"`
	PeerCompanies  []string   `json:"peer_companies"`
	PeerDieticians []string   `json:"peer_dieticians"`
	Questions      []string   `json:"questions"`
	Answers        [][]string `json:"answers"`
	Question       int        `json:"question"`
	CanSubmit      bool       `json:"can_submit"`
}

// Snapshot returns the current wizard state as a View.
func (w *Wizard) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	answers := make([][]string, len(w.answers))
	for i, row := range w.answers {
		answers[i] = append([]string(nil), row...)
	}
	return View{
		Step:           w.step.String(),
		ExamplePersona: w.topic.Assignment.ExamplePersona,
		PersonaName:    w.personaName,
		PersonaStory:   w.personaStory,
		PeerCompanies:  append([]string(nil), w.peerCompanies...),
		PeerDieticians: append([]string(nil), w.peerDieticians...),
		Questions:      w.topic.Assignment.Questions,
		Answers:        answers,
		Question:       w.question,
		CanSubmit:      w.matrixComplete(),
	}
}
