package ai

import (
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage against per-trainee budgets.
type BudgetChecker interface {
	// Check returns true if the trainee has budget remaining.
	Check(traineeID string) (bool, error)
	// Record records token usage for a trainee.
	Record(traineeID string, tokens int) error
	// Usage returns current usage for a trainee.
	Usage(traineeID string) (used int64, budget int64, err error)
}

// InMemoryBudget is a simple in-memory budget tracker. A trainee with no
// budget set is unlimited.
type InMemoryBudget struct {
	mu      sync.RWMutex
	budgets map[string]int64
	usage   map[string]int64
}

// NewInMemoryBudget creates a new in-memory budget tracker.
func NewInMemoryBudget() *InMemoryBudget {
	return &InMemoryBudget{
		budgets: make(map[string]int64),
		usage:   make(map[string]int64),
	}
}

// SetBudget sets the token budget for a trainee.
func (b *InMemoryBudget) SetBudget(traineeID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[traineeID] = tokens
}

func (b *InMemoryBudget) Check(traineeID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget, hasBudget := b.budgets[traineeID]
	if !hasBudget {
		return true, nil
	}

	return b.usage[traineeID] < budget, nil
}

func (b *InMemoryBudget) Record(traineeID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage[traineeID] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(traineeID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.usage[traineeID], b.budgets[traineeID], nil
}
