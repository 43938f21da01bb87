package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/veda-wellness/nutricert/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("openai", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("anthropic", failing)
	router.Register("openai", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()

	router.Register("anthropic", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("openai", &ai.MockProvider{Err: errors.New("fail 2")})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error with no providers")
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	// First registered should be tried first.
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
}

func TestRouter_BudgetExceeded(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("ok")
	router.Register("mock", mock)

	budget := ai.NewInMemoryBudget()
	budget.SetBudget("trainee-1", 5)
	budget.Record("trainee-1", 5)
	router.SetBudget(budget)

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages:  []ai.Message{{Role: "user", Content: "hi"}},
		TraineeID: "trainee-1",
	})
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Fatalf("Complete() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls != 0 {
		t.Errorf("provider called %d times, want 0 when over budget", mock.Calls)
	}
}

func TestRouter_BudgetRecordsUsage(t *testing.T) {
	router := ai.NewRouter()
	router.Register("mock", ai.NewMockProvider("ok"))

	budget := ai.NewInMemoryBudget()
	budget.SetBudget("trainee-1", 1000)
	router.SetBudget(budget)

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages:  []ai.Message{{Role: "user", Content: "hi"}},
		TraineeID: "trainee-1",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	used, _, err := budget.Usage("trainee-1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used == 0 {
		t.Error("Usage() = 0, want tokens recorded after completion")
	}
}

func TestRouter_UnattributedRequestSkipsBudget(t *testing.T) {
	router := ai.NewRouter()
	router.Register("mock", ai.NewMockProvider("ok"))

	budget := ai.NewInMemoryBudget()
	budget.SetBudget("trainee-1", 0)
	router.SetBudget(budget)

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v; unattributed requests should skip budget", err)
	}
}
