package quiz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veda-wellness/nutricert/internal/ai"
	"github.com/veda-wellness/nutricert/internal/catalog"
	"github.com/veda-wellness/nutricert/internal/quiz"
)

const validQuizJSON = `[
	{"question": "Which macronutrient provides 9 kcal per gram?",
	 "options": ["Protein", "Fat", "Carbohydrate", "Fibre"],
	 "correctAnswer": "Fat"},
	{"question": "What is a typical adult daily fibre target?",
	 "options": ["5 g", "15 g", "30 g", "80 g"],
	 "correctAnswer": "30 g"}
]`

// mapCache is an in-process QuizCache for tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) GetString(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) SetString(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func testTopic() catalog.Topic {
	return catalog.Topic{
		Code:    "M1-01",
		Title:   "Macronutrient Basics",
		Content: "Energy density of protein, fat and carbohydrate.",
	}
}

func TestGenerator_Generate(t *testing.T) {
	mock := ai.NewMockProvider(validQuizJSON)
	gen := quiz.NewGenerator(mock, nil, 5, time.Hour)

	q, err := gen.Generate(t.Context(), testTopic(), "u1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if q.TopicCode != "M1-01" {
		t.Errorf("TopicCode = %q, want M1-01", q.TopicCode)
	}
	if len(q.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(q.Questions))
	}
	if q.Questions[0].CorrectAnswer != "Fat" {
		t.Errorf("Questions[0].CorrectAnswer = %q", q.Questions[0].CorrectAnswer)
	}

	req := mock.LastRequest
	if req == nil {
		t.Fatal("provider never called")
	}
	if !req.JSONOnly {
		t.Error("request not marked JSONOnly")
	}
	if req.Task != ai.TaskQuizGen {
		t.Errorf("request task = %v, want quizgen", req.Task)
	}
	if req.TraineeID != "u1" {
		t.Errorf("request trainee = %q, want u1", req.TraineeID)
	}
}

func TestGenerator_MalformedPayloadDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"prose", "Here are your questions!"},
		{"wrong shape", `{"question": "single object"}`},
		{"missing fields", `[{"question": "Q1", "options": ["A", "B"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := quiz.NewGenerator(ai.NewMockProvider(tt.response), nil, 5, time.Hour)

			q, err := gen.Generate(t.Context(), testTopic(), "u1")
			if err != nil {
				t.Fatalf("Generate() error = %v, want nil for malformed payload", err)
			}
			if len(q.Questions) != 0 {
				t.Errorf("got %d questions, want 0", len(q.Questions))
			}
		})
	}
}

func TestGenerator_CachesGeneratedQuiz(t *testing.T) {
	mock := ai.NewMockProvider(validQuizJSON)
	gen := quiz.NewGenerator(mock, newMapCache(), 5, time.Hour)

	if _, err := gen.Generate(t.Context(), testTopic(), "u1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	q, err := gen.Generate(t.Context(), testTopic(), "u1")
	if err != nil {
		t.Fatalf("Generate() (cached) error = %v", err)
	}
	if len(q.Questions) != 2 {
		t.Fatalf("cached quiz has %d questions, want 2", len(q.Questions))
	}
	if mock.Calls != 1 {
		t.Errorf("provider called %d times, want 1", mock.Calls)
	}
}

func TestGrader_GradeAnswer(t *testing.T) {
	mock := ai.NewMockProvider(`{"score": 7, "feedback": "Solid reasoning, cite portion sizes."}`)
	grader := quiz.NewGrader(mock)

	grade, err := grader.GradeAnswer(t.Context(), "Fat is the densest macronutrient.", "Award up to 10 points.", "u1")
	if err != nil {
		t.Fatalf("GradeAnswer() error = %v", err)
	}
	if grade.Score != 7 {
		t.Errorf("Score = %d, want 7", grade.Score)
	}
	if grade.Feedback == "" {
		t.Error("Feedback is empty")
	}
	if mock.LastRequest.Task != ai.TaskGrading {
		t.Errorf("request task = %v, want grading", mock.LastRequest.Task)
	}
}

func TestGrader_MalformedPayloadScoresZero(t *testing.T) {
	grader := quiz.NewGrader(ai.NewMockProvider("Nice work, 7/10"))

	grade, err := grader.GradeAnswer(t.Context(), "answer", "rubric", "u1")
	if err != nil {
		t.Fatalf("GradeAnswer() error = %v", err)
	}
	if grade.Score != 0 || grade.Feedback != "" {
		t.Errorf("grade = %+v, want zero value", grade)
	}
}
