package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veda-wellness/nutricert/internal/ai"
	"github.com/veda-wellness/nutricert/internal/catalog"
)

// quizSchema validates the generated question list before it reaches a
// trainee. Anything that fails here is treated as an empty quiz.
var quizSchema = gojsonschema.NewStringLoader(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["question", "options", "correctAnswer"],
		"properties": {
			"question": {"type": "string", "minLength": 1},
			"options": {
				"type": "array",
				"items": {"type": "string"},
				"minItems": 2
			},
			"correctAnswer": {"type": "string", "minLength": 1}
		}
	}
}`)

const quizSystemPrompt = `You create retention-check quizzes for trainee nutrition counsellors.
Respond with a JSON array of question objects, each with "question", "options" (4 strings) and "correctAnswer" (one of the options). No other text.`

// Completer dispatches completion requests; satisfied by ai.Router.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// QuizCache caches generated quizzes keyed by topic code; satisfied by
// platform/cache.Cache. May be nil.
type QuizCache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// Generator produces quizzes from topic material via the AI gateway, with a
// Redis-backed cache so repeated sessions on the same topic reuse one
// generation call.
type Generator struct {
	completer Completer
	cache     QuizCache
	count     int
	ttl       time.Duration
}

// NewGenerator creates a quiz generator. cache may be nil to disable
// caching.
func NewGenerator(completer Completer, cache QuizCache, count int, ttl time.Duration) *Generator {
	if count <= 0 {
		count = 5
	}
	return &Generator{completer: completer, cache: cache, count: count, ttl: ttl}
}

func cacheKey(topicCode string) string {
	return "quiz:" + topicCode
}

// Generate returns a quiz for the topic. An upstream payload that is not
// valid question JSON degrades to a zero-question quiz rather than an error;
// transport failures are returned to the caller.
func (g *Generator) Generate(ctx context.Context, topic catalog.Topic, traineeID string) (Quiz, error) {
	if g.cache != nil {
		if raw, ok, err := g.cache.GetString(ctx, cacheKey(topic.Code)); err != nil {
			slog.Warn("quiz cache read failed", "topic", topic.Code, "error", err)
		} else if ok {
			var questions []Question
			if err := json.Unmarshal([]byte(raw), &questions); err == nil {
				return Quiz{TopicCode: topic.Code, Questions: questions}, nil
			}
			slog.Warn("quiz cache entry corrupt, regenerating", "topic", topic.Code)
		}
	}

	prompt := fmt.Sprintf("Create %d questions on the topic %q.\n\nMaterial:\n%s",
		g.count, topic.Title, topic.Content)

	resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: quizSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Task:        ai.TaskQuizGen,
		JSONOnly:    true,
		Temperature: 0.3,
		TraineeID:   traineeID,
	})
	if err != nil {
		return Quiz{}, fmt.Errorf("generate quiz for %s: %w", topic.Code, err)
	}

	questions, ok := parseQuestions(resp.Content)
	if !ok {
		slog.Warn("quiz generation returned malformed payload",
			"topic", topic.Code, "model", resp.Model)
		return Quiz{TopicCode: topic.Code}, nil
	}

	if g.cache != nil {
		if raw, err := json.Marshal(questions); err == nil {
			if err := g.cache.SetString(ctx, cacheKey(topic.Code), string(raw), g.ttl); err != nil {
				slog.Warn("quiz cache write failed", "topic", topic.Code, "error", err)
			}
		}
	}
	return Quiz{TopicCode: topic.Code, Questions: questions}, nil
}

func parseQuestions(content string) ([]Question, bool) {
	result, err := gojsonschema.Validate(quizSchema, gojsonschema.NewStringLoader(content))
	if err != nil || !result.Valid() {
		return nil, false
	}
	var questions []Question
	if err := json.Unmarshal([]byte(content), &questions); err != nil {
		return nil, false
	}
	return questions, true
}
