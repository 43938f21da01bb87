package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrBudgetExceeded is returned when a trainee has no token budget left.
var ErrBudgetExceeded = errors.New("trainee token budget exceeded")

// Router selects the best provider based on task type and availability.
// When a budget checker is attached, attributed requests are checked before
// dispatch and recorded after.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// SetBudget attaches a budget checker for attributed requests.
func (r *Router) SetBudget(b BudgetChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = b
}

// Complete routes a request to the best available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.budget != nil && req.TraineeID != "" {
		ok, err := r.budget.Check(req.TraineeID)
		if err != nil {
			return CompletionResponse{}, fmt.Errorf("budget check: %w", err)
		}
		if !ok {
			return CompletionResponse{}, ErrBudgetExceeded
		}
	}

	// Try each provider in fallback order.
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			continue
		}

		if r.budget != nil && req.TraineeID != "" {
			if err := r.budget.Record(req.TraineeID, resp.TotalTokens()); err != nil {
				slog.Warn("failed to record token usage", "trainee_id", req.TraineeID, "error", err)
			}
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed")
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
