package quiz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/veda-wellness/nutricert/internal/quiz"
	"github.com/veda-wellness/nutricert/internal/records"
)

func fiveQuestionQuiz() quiz.Quiz {
	return quiz.Quiz{TopicCode: "M1-01", Questions: fiveQuestions()}
}

func TestSession_AnswerAllQuestions(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()

	var completed []quiz.Result
	s := quiz.NewSession(fiveQuestionQuiz(), "u1", "M1-01.quiz", 600, store, func(r quiz.Result) {
		completed = append(completed, r)
	})

	for _, ans := range []string{"A", "B", "C", "wrong", "E"} {
		if err := s.Answer(ctx, ans); err != nil {
			t.Fatalf("Answer(%q) error = %v", ans, err)
		}
	}

	result, done := s.Result()
	if !done {
		t.Fatal("session not done after answering every question")
	}
	if result.Score != 4 || result.Total != 5 {
		t.Errorf("result = %d/%d, want 4/5", result.Score, result.Total)
	}
	if result.Percent() != 80 {
		t.Errorf("Percent() = %d, want 80", result.Percent())
	}

	if len(completed) != 1 {
		t.Fatalf("onComplete fired %d times, want 1", len(completed))
	}
	if has, _ := store.HasAssessment(ctx, "u1", "M1-01.quiz"); !has {
		t.Error("result not logged to the record store")
	}

	// Late answers and repeat finalization are no-ops.
	if err := s.Answer(ctx, "A"); err != nil {
		t.Errorf("Answer() after done error = %v", err)
	}
	if err := s.Finalize(ctx); err != nil {
		t.Errorf("Finalize() repeat error = %v", err)
	}
	if len(completed) != 1 {
		t.Errorf("onComplete fired %d times after repeats, want 1", len(completed))
	}
}

func TestSession_TimeoutAutoSubmits(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	s := quiz.NewSession(fiveQuestionQuiz(), "u1", "M1-01.quiz", 3, store, nil)

	if err := s.Answer(ctx, "A"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if err := s.Answer(ctx, "B"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}

	result, done := s.Result()
	if !done {
		t.Fatal("session not finalized at countdown zero")
	}
	// The unanswered tail is auto-filled empty and never matches.
	if result.Score != 2 || result.Total != 5 {
		t.Errorf("result = %d/%d, want 2/5", result.Score, result.Total)
	}
}

func TestSession_ZeroQuestions(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	s := quiz.NewSession(quiz.Quiz{TopicCode: "M1-01"}, "u1", "M1-01.quiz", 600, store, nil)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	result, done := s.Result()
	if !done {
		t.Fatal("zero-question session not finalized on start")
	}
	if result.Score != 0 || result.Total != 0 {
		t.Errorf("result = %d/%d, want 0/0", result.Score, result.Total)
	}
	if result.Percent() != 0 {
		t.Errorf("Percent() = %d, want 0", result.Percent())
	}
}

type failingLogger struct {
	fails int
	store *records.MemoryStore
}

func (l *failingLogger) LogAssessment(ctx context.Context, r records.AssessmentResult) error {
	if l.fails > 0 {
		l.fails--
		return errors.New("connection reset")
	}
	return l.store.LogAssessment(ctx, r)
}

func TestSession_LoggingFailureRetriesOnNextTick(t *testing.T) {
	ctx := context.Background()
	logger := &failingLogger{fails: 1, store: records.NewMemoryStore()}
	s := quiz.NewSession(fiveQuestionQuiz(), "u1", "M1-01.quiz", 1, logger, nil)

	if err := s.Tick(ctx); err == nil {
		t.Fatal("Tick() error = nil with a failing logger")
	}
	if s.Done() {
		t.Fatal("session marked done despite logging failure")
	}

	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick() retry error = %v", err)
	}
	if !s.Done() {
		t.Fatal("session not finalized after retry")
	}
	if has, _ := logger.store.HasAssessment(ctx, "u1", "M1-01.quiz"); !has {
		t.Error("result not logged after retry")
	}
}

func TestSession_State(t *testing.T) {
	ctx := context.Background()
	s := quiz.NewSession(fiveQuestionQuiz(), "u1", "M1-01.quiz", 600, records.NewMemoryStore(), nil)

	v := s.State()
	if v.Done || v.Pointer != 0 || v.Total != 5 || v.Question != "Q1" {
		t.Errorf("initial state = %+v", v)
	}

	if err := s.Answer(ctx, "A"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	v = s.State()
	if v.Pointer != 1 || v.Question != "Q2" {
		t.Errorf("state after one answer = %+v", v)
	}
}
