package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/veda-wellness/nutricert/internal/records"
)

// ResultLogger persists a finalized session; satisfied by records.Store.
type ResultLogger interface {
	LogAssessment(ctx context.Context, result records.AssessmentResult) error
}

// Session runs one timed single-pass quiz. Questions are presented one at a
// time; each answer advances the pointer. The session finalizes when the
// pointer passes the last question or the countdown hits zero, whichever
// comes first, and the result is then immutable.
type Session struct {
	quiz       Quiz
	userID     string
	code       string
	logger     ResultLogger
	onComplete func(Result)

	mu      sync.Mutex
	ticks   int
	answers []string
	pointer int
	done    bool
	result  Result
}

// NewSession creates a session over an already-generated quiz. code is the
// scoped key under which the result is logged. onComplete may be nil.
func NewSession(q Quiz, userID, code string, durationTicks int, logger ResultLogger, onComplete func(Result)) *Session {
	return &Session{
		quiz:       q,
		userID:     userID,
		code:       code,
		logger:     logger,
		onComplete: onComplete,
		ticks:      durationTicks,
	}
}

// Start finalizes immediately when the quiz has no questions, logging a
// zero-of-zero result instead of presenting an empty form.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if len(s.quiz.Questions) > 0 || s.done {
		s.mu.Unlock()
		return nil
	}
	return s.finalizeLocked(ctx)
}

// Current returns the question under the pointer. ok is false once the
// session is done.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.pointer >= len(s.quiz.Questions) {
		return Question{}, false
	}
	return s.quiz.Questions[s.pointer], true
}

// Answer records an answer for the current question and advances. Answering
// past the last question finalizes the session. Answers after finalization
// are ignored.
func (s *Session) Answer(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.answers = append(s.answers, text)
	s.pointer++
	if s.pointer >= len(s.quiz.Questions) {
		return s.finalizeLocked(ctx)
	}
	s.mu.Unlock()
	return nil
}

// Tick consumes one countdown unit. At zero the session finalizes with the
// remaining positions auto-filled empty, which never match.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	if s.ticks > 0 {
		s.ticks--
	}
	if s.ticks == 0 {
		return s.finalizeLocked(ctx)
	}
	s.mu.Unlock()
	return nil
}

// Finalize forces finalization regardless of pointer or countdown.
// Idempotent: repeat calls return nil without logging again.
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	return s.finalizeLocked(ctx)
}

// finalizeLocked is called with s.mu held and releases it. On a logging
// failure the session stays open so the next Tick or Finalize retries.
func (s *Session) finalizeLocked(ctx context.Context) error {
	for len(s.answers) < len(s.quiz.Questions) {
		s.answers = append(s.answers, "")
	}

	result := Result{
		UserID:    s.userID,
		Code:      s.code,
		Score:     Score(s.quiz.Questions, s.answers),
		Total:     len(s.quiz.Questions),
		CreatedAt: time.Now(),
	}

	if s.logger != nil {
		err := s.logger.LogAssessment(ctx, records.AssessmentResult{
			UserID:    result.UserID,
			Code:      result.Code,
			Score:     result.Score,
			Total:     result.Total,
			CreatedAt: result.CreatedAt,
		})
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("log quiz result: %w", err)
		}
	}

	s.done = true
	s.result = result
	callback := s.onComplete
	s.mu.Unlock()

	if callback != nil {
		callback(result)
	}
	return nil
}

// Done reports whether the session has finalized.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Result returns the finalized result; ok is false while the session runs.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.done
}

// View is a rendering snapshot of a session.
type View struct {
	Pointer   int      `json:"pointer"`
	Total     int      `json:"total"`
	Remaining int      `json:"remaining_ticks"`
	Done      bool     `json:"done"`
	Question  string   `json:"question,omitempty"`
	Options   []string `json:"options,omitempty"`
	Score     int      `json:"score,omitempty"`
	Percent   int      `json:"percent,omitempty"`
}

// State returns the current session view.
func (s *Session) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Pointer:   s.pointer,
		Total:     len(s.quiz.Questions),
		Remaining: s.ticks,
		Done:      s.done,
	}
	if s.done {
		v.Score = s.result.Score
		v.Percent = s.result.Percent()
	} else if s.pointer < len(s.quiz.Questions) {
		q := s.quiz.Questions[s.pointer]
		v.Question = q.Question
		v.Options = q.Options
	}
	return v
}

// Run drives the countdown until the session finalizes or ctx is done. The
// timer runs independently of answer submissions.
func (s *Session) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				continue // retried on the next tick
			}
			if s.Done() {
				return
			}
		}
	}
}
