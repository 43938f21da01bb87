// Package progress tracks per-trainee topic completion: the three phase
// flags, derived readiness, and the remote-persisted completed flag.
package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

var (
	// ErrNotReady is returned when completion is requested before every
	// required phase is done.
	ErrNotReady = errors.New("topic is not ready to be marked complete")
)

// TopicProgress is a snapshot of one trainee's state on one topic.
type TopicProgress struct {
	TopicCode        string `json:"topic_code"`
	MaterialReviewed bool   `json:"material_reviewed"`
	SimulationDone   bool   `json:"simulation_done"`
	AssignmentDone   bool   `json:"assignment_done"`
	Ready            bool   `json:"ready"`
	Completed        bool   `json:"completed"`
}

// Tracker owns the phase flags for one trainee on one topic. Phase marks are
// local until ToggleComplete persists the finalized state; the store is only
// touched there.
type Tracker struct {
	topic  catalog.Topic
	userID string
	store  Store

	mu         sync.Mutex
	material   bool
	simulation bool
	assignment bool
	completed  bool
}

// NewTracker builds a tracker, reconciling local phase flags from the remote
// completion state once: a topic already completed remotely is seeded with
// every required phase done and its flags frozen.
func NewTracker(topic catalog.Topic, userID string, completed bool, store Store) *Tracker {
	t := &Tracker{
		topic:     topic,
		userID:    userID,
		store:     store,
		completed: completed,
	}
	if completed {
		t.material = topic.RequiresMaterial()
		t.simulation = topic.RequiresSimulation()
		t.assignment = topic.RequiresAssignment()
	}
	return t
}

// MarkMaterialReviewed records the material phase. Frozen once the topic is
// completed remotely.
func (t *Tracker) MarkMaterialReviewed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return
	}
	t.material = true
}

// MarkSimulationDone records the simulation phase.
func (t *Tracker) MarkSimulationDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return
	}
	t.simulation = true
}

// MarkAssignmentDone records the assignment phase.
func (t *Tracker) MarkAssignmentDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completed {
		return
	}
	t.assignment = true
}

// Ready reports whether every phase the topic requires is done.
func (t *Tracker) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready()
}

func (t *Tracker) ready() bool {
	if t.topic.RequiresMaterial() && !t.material {
		return false
	}
	if t.topic.RequiresSimulation() && !t.simulation {
		return false
	}
	if t.topic.RequiresAssignment() && !t.assignment {
		return false
	}
	return true
}

// Completed reports the persisted completion state as last confirmed.
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// ToggleComplete flips the persisted completion flag. false→true requires
// Ready; true→false is always allowed (a correction). The local state only
// changes after the store confirms the write, so a failed write leaves the
// tracker untouched and the caller can retry.
func (t *Tracker) ToggleComplete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed {
		if err := t.store.ClearCompleted(ctx, t.userID, t.topic.Code); err != nil {
			return err
		}
		t.completed = false
		// Local phase caches reset to the remote truth: nothing is done.
		t.material = false
		t.simulation = false
		t.assignment = false
		return nil
	}

	if !t.ready() {
		return ErrNotReady
	}
	if err := t.store.SetCompleted(ctx, t.userID, t.topic.Code); err != nil {
		return err
	}
	t.completed = true
	return nil
}

// Snapshot returns the current state for rendering.
func (t *Tracker) Snapshot() TopicProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TopicProgress{
		TopicCode:        t.topic.Code,
		MaterialReviewed: t.material,
		SimulationDone:   t.simulation,
		AssignmentDone:   t.assignment,
		Ready:            t.ready(),
		Completed:        t.completed,
	}
}
