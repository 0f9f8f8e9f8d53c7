// Package progress records which topics a learner has completed.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrAlreadyCompleted is returned when a (user, topic) completion already exists.
var ErrAlreadyCompleted = errors.New("topic already completed")

// CompletionRecord is proof that a user passed a topic's quiz.
type CompletionRecord struct {
	UserID      string    `json:"user_id"`
	TopicID     string    `json:"concept_id"`
	CompletedAt time.Time `json:"completed_at"`
	QuizScore   *int      `json:"quiz_score"`
}

// Score returns the quiz score, or 0 when none was recorded.
func (r CompletionRecord) Score() int {
	if r.QuizScore == nil {
		return 0
	}
	return *r.QuizScore
}

// CompletionStore persists completion records. Records are append-only.
type CompletionStore interface {
	ListCompletions(ctx context.Context, userID string) ([]CompletionRecord, error)
	RecordCompletion(ctx context.Context, rec CompletionRecord) (CompletionRecord, error)
}

// CompletedSet returns the topic ids present in records.
func CompletedSet(records []CompletionRecord) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.TopicID] = true
	}
	return out
}

// MemoryStore is an in-memory implementation of CompletionStore.
type MemoryStore struct {
	records map[string][]CompletionRecord // user id -> records
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory completion store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]CompletionRecord)}
}

func (s *MemoryStore) ListCompletions(_ context.Context, userID string) ([]CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]CompletionRecord{}, s.records[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (s *MemoryStore) RecordCompletion(_ context.Context, rec CompletionRecord) (CompletionRecord, error) {
	if rec.UserID == "" || rec.TopicID == "" {
		return CompletionRecord{}, fmt.Errorf("user_id and concept_id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records[rec.UserID] {
		if existing.TopicID == rec.TopicID {
			return existing, ErrAlreadyCompleted
		}
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	s.records[rec.UserID] = append(s.records[rec.UserID], rec)
	return rec, nil
}
