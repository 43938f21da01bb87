// Package quiz implements the retention-check engine: LLM-generated
// multiple-choice quizzes, timed single-pass sessions, exact-match scoring,
// and free-text grading.
package quiz

import "time"

// Question is one multiple-choice item.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Quiz is a generated set of questions for one topic.
type Quiz struct {
	TopicCode string     `json:"topic_code"`
	Questions []Question `json:"questions"`
}

// Score counts positions where the submitted answer equals the designated
// correct option. Missing answers never match; extra answers are ignored.
func Score(questions []Question, answers []string) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// Result is one finalized retention-check outcome.
type Result struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Percent returns the score as a whole percentage. A zero-question session
// scores 0 without dividing by zero.
func (r Result) Percent() int {
	total := r.Total
	if total == 0 {
		total = 1
	}
	return r.Score * 100 / total
}
