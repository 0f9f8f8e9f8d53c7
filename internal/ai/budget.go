package ai

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted is returned once a Budget's limit has been spent.
var ErrBudgetExhausted = errors.New("token budget exhausted")

// Budget tracks tokens spent during one generation run. The zero limit
// means unlimited; a nil *Budget is also unlimited.
type Budget struct {
	mu    sync.Mutex
	limit int64
	used  int64
}

// NewBudget creates a budget capped at limit tokens.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Check returns ErrBudgetExhausted when no tokens remain.
func (b *Budget) Check() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && b.used >= b.limit {
		return ErrBudgetExhausted
	}
	return nil
}

// Record adds spent tokens. Negative counts are ignored.
func (b *Budget) Record(tokens int) {
	if b == nil || tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.used += int64(tokens)
}

// Used returns the tokens spent so far.
func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}
