package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/veda-wellness/nutricert/internal/catalog"
)

func TestLoader_LoadModules(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	mods := loader.Modules()
	if len(mods) != 3 {
		t.Fatalf("Modules() = %d modules, want 3", len(mods))
	}
	// Catalog order follows the order field, not filename order.
	if mods[0].ID != "module-1" || mods[1].ID != "module-2" || mods[2].ID != "module-3" {
		t.Errorf("Modules() order = %s, %s, %s", mods[0].ID, mods[1].ID, mods[2].ID)
	}
}

func TestLoader_GetModule(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	mod, found := loader.GetModule("module-2")
	if !found {
		t.Fatal("GetModule(module-2) not found")
	}
	if mod.Title == "" {
		t.Error("Module.Title is empty")
	}
	if mod.Policy.PrerequisiteTopic != "M2-04" {
		t.Errorf("Policy.PrerequisiteTopic = %q, want M2-04", mod.Policy.PrerequisiteTopic)
	}

	_, found = loader.GetModule("nonexistent")
	if found {
		t.Error("GetModule(nonexistent) should not be found")
	}
}

func TestLoader_GetTopic(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	topic, found := loader.GetTopic("M1-01")
	if !found {
		t.Fatal("GetTopic(M1-01) not found")
	}
	if topic.Title == "" {
		t.Error("Topic.Title is empty")
	}

	_, found = loader.GetTopic("NONEXISTENT")
	if found {
		t.Error("GetTopic(NONEXISTENT) should not be found")
	}
}

func TestLoader_NextModule(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	next, ok := loader.NextModule("module-1")
	if !ok {
		t.Fatal("NextModule(module-1) should find module-2")
	}
	if next.ID != "module-2" {
		t.Errorf("NextModule(module-1) = %s, want module-2", next.ID)
	}

	if _, ok := loader.NextModule("module-3"); ok {
		t.Error("NextModule(module-3) should report no next module")
	}
	if _, ok := loader.NextModule("nonexistent"); ok {
		t.Error("NextModule(nonexistent) should report no next module")
	}
}

func TestLoader_ModuleForTopic(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	mod, found := loader.ModuleForTopic("M2-04")
	if !found {
		t.Fatal("ModuleForTopic(M2-04) not found")
	}
	if mod.ID != "module-2" {
		t.Errorf("ModuleForTopic(M2-04) = %s, want module-2", mod.ID)
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	if _, err := catalog.NewLoader(dir); err == nil {
		t.Fatal("NewLoader() should fail on a directory with no modules")
	}
}

func TestLoader_DuplicateTopicCode(t *testing.T) {
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
id: module-a
title: A
order: 1
topics:
  - code: T-01
    title: First
`), 0o644)
	os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(`
id: module-b
title: B
order: 2
topics:
  - code: T-01
    title: Duplicate
`), 0o644)

	if _, err := catalog.NewLoader(dir); err == nil {
		t.Fatal("NewLoader() should fail on duplicate topic codes")
	}
}

func TestTopic_RequiredPhases(t *testing.T) {
	tests := []struct {
		name         string
		topic        catalog.Topic
		wantMaterial bool
		wantSim      bool
		wantAssign   bool
	}{
		{"plain", catalog.Topic{Code: "T"}, true, false, false},
		{"live", catalog.Topic{Code: "T", HasLive: true}, true, true, false},
		{"assignment", catalog.Topic{Code: "T", IsAssignment: true}, false, false, true},
		{"live assignment", catalog.Topic{Code: "T", HasLive: true, IsAssignment: true}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.topic.RequiresMaterial(); got != tt.wantMaterial {
				t.Errorf("RequiresMaterial() = %v, want %v", got, tt.wantMaterial)
			}
			if got := tt.topic.RequiresSimulation(); got != tt.wantSim {
				t.Errorf("RequiresSimulation() = %v, want %v", got, tt.wantSim)
			}
			if got := tt.topic.RequiresAssignment(); got != tt.wantAssign {
				t.Errorf("RequiresAssignment() = %v, want %v", got, tt.wantAssign)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	dir := setupTestSyllabus(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	got := loader.Search("MACRONUTRIENTS")
	if len(got) != 1 || got[0].Code != "M1-01" {
		t.Errorf("Search(MACRONUTRIENTS) = %v, want [M1-01]", codes(got))
	}

	if got := loader.Search("  "); got != nil {
		t.Errorf("Search(blank) = %v, want nil", codes(got))
	}

	if got := loader.Search("m2-"); len(got) != 2 {
		t.Errorf("Search(m2-) = %v, want 2 topics", codes(got))
	}
}

func codes(topics []catalog.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.Code
	}
	return out
}

func setupTestSyllabus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "03-certification.yaml"), []byte(`
id: module-3
title: Certification Readiness
kind: standard
order: 3
policy:
  simulation_before_assessment: true
  terminal_assessment: true
  briefing_modal: true
topics:
  - code: M3-01
    title: Mock Counselling Calls
    content: Run a full client call end to end.
    has_live: true
`), 0o644)

	os.WriteFile(filepath.Join(dir, "01-foundations.yaml"), []byte(`
id: module-1
title: Nutrition Foundations
kind: standard
order: 1
topics:
  - code: M1-01
    title: Macronutrients and Energy Balance
    content: Protein, carbohydrate and fat fundamentals.
    outcome: Explain energy balance to a client.
  - code: M1-02
    title: Reading a Food Label
    content: Serving sizes, claims and additives.
    has_live: true
`), 0o644)

	os.WriteFile(filepath.Join(dir, "02-client-practice.yaml"), []byte(`
id: module-2
title: Client Practice
kind: standard
order: 2
policy:
  prerequisite_topic: M2-04
  terminal_assessment: true
topics:
  - code: M2-04
    title: Intake Interview Protocol
    content: Structured first-session interview.
  - code: M2-05
    title: Peer Practice Audit
    is_assignment: true
    assignment:
      example_persona: "Amira, 34, wants sustainable weight loss without giving up family dinners."
      questions:
        - What onboarding questions does each dietician ask?
        - How is pricing presented?
`), 0o644)

	return dir
}
