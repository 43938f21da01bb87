// Package ai provides a provider-agnostic gateway to the text-generation
// service, with task-based routing and per-trainee token budgets.
package ai

import "context"

// TaskType defines the kind of generation task for routing purposes.
type TaskType int

const (
	TaskQuizGen TaskType = iota
	TaskGrading
	TaskSimulation
	TaskAnalysis
)

func (t TaskType) String() string {
	switch t {
	case TaskQuizGen:
		return "quizgen"
	case TaskGrading:
		return "grading"
	case TaskSimulation:
		return "simulation"
	case TaskAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSONOnly asks the provider to return a single JSON value with no
	// surrounding prose. Callers still validate the payload themselves.
	JSONOnly bool `json:"json_only,omitempty"`
	// TraineeID attributes token usage to a trainee for budget checks.
	// Empty means unattributed (no budget applies).
	TraineeID string `json:"trainee_id,omitempty"`
}

// CompletionResponse is the output from a completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all generation providers must implement.
// Requests are plain request/response; no streaming semantics.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
