package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veda-wellness/nutricert/internal/ai"
)

var gradeSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["score", "feedback"],
	"properties": {
		"score": {"type": "integer", "minimum": 0},
		"feedback": {"type": "string"}
	}
}`)

const gradeSystemPrompt = `You grade a trainee nutrition counsellor's free-text answer against a rubric.
Respond with a JSON object {"score": <integer>, "feedback": "<short feedback>"}. No other text.`

// Grade is the outcome of grading one free-text answer.
type Grade struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Grader scores free-text answers against a rubric via the AI gateway.
type Grader struct {
	completer Completer
}

// NewGrader creates a grader over the given completer.
func NewGrader(completer Completer) *Grader {
	return &Grader{completer: completer}
}

// GradeAnswer grades one answer. A malformed upstream payload degrades to a
// zero grade with empty feedback; transport failures are returned.
func (g *Grader) GradeAnswer(ctx context.Context, answer, rubric, traineeID string) (Grade, error) {
	prompt := fmt.Sprintf("Rubric:\n%s\n\nAnswer:\n%s", rubric, answer)

	resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: gradeSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Task:      ai.TaskGrading,
		JSONOnly:  true,
		TraineeID: traineeID,
	})
	if err != nil {
		return Grade{}, fmt.Errorf("grade answer: %w", err)
	}

	result, err := gojsonschema.Validate(gradeSchema, gojsonschema.NewStringLoader(resp.Content))
	if err != nil || !result.Valid() {
		slog.Warn("grading returned malformed payload", "model", resp.Model)
		return Grade{}, nil
	}

	var grade Grade
	if err := json.Unmarshal([]byte(resp.Content), &grade); err != nil {
		slog.Warn("grading payload not decodable", "model", resp.Model)
		return Grade{}, nil
	}
	return grade, nil
}
