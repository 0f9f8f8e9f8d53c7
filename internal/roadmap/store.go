package roadmap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContentStore reads and writes roadmap content.
type ContentStore interface {
	ListRoadmaps(ctx context.Context) ([]Roadmap, error)
	GetRoadmap(ctx context.Context, id string) (*Roadmap, error)
	ListTopics(ctx context.Context, roadmapID string) ([]Topic, error)
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListEdges(ctx context.Context) ([]Edge, error)
	CreateRoadmap(ctx context.Context, r Roadmap) (string, error)
	CreateTopic(ctx context.Context, t Topic) (string, error)
	AddEdge(ctx context.Context, e Edge) error
	DeleteRoadmap(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of ContentStore.
type MemoryStore struct {
	roadmaps map[string]Roadmap
	topics   map[string]Topic
	edges    []Edge
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roadmaps: make(map[string]Roadmap),
		topics:   make(map[string]Topic),
	}
}

func (s *MemoryStore) ListRoadmaps(_ context.Context) ([]Roadmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Roadmap, 0, len(s.roadmaps))
	for _, r := range s.roadmaps {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetRoadmap(_ context.Context, id string) (*Roadmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roadmaps[id]
	if !ok {
		return nil, fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (s *MemoryStore) ListTopics(_ context.Context, roadmapID string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Topic
	for _, t := range s.topics {
		if t.RoadmapID == roadmapID {
			out = append(out, t)
		}
	}
	sortTopics(out)
	return out, nil
}

func (s *MemoryStore) GetTopic(_ context.Context, id string) (*Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[id]
	if !ok {
		return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (s *MemoryStore) ListEdges(_ context.Context) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge{}, s.edges...), nil
}

func (s *MemoryStore) CreateRoadmap(_ context.Context, r Roadmap) (string, error) {
	if r.Title == "" {
		return "", fmt.Errorf("roadmap title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.roadmaps[r.ID] = r
	return r.ID, nil
}

func (s *MemoryStore) CreateTopic(_ context.Context, t Topic) (string, error) {
	if t.Title == "" {
		return "", fmt.Errorf("topic title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roadmaps[t.RoadmapID]; !ok {
		return "", fmt.Errorf("roadmap %s: %w", t.RoadmapID, ErrNotFound)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.topics[t.ID] = t
	return t.ID, nil
}

func (s *MemoryStore) AddEdge(_ context.Context, e Edge) error {
	if e.TopicID == "" || e.PrerequisiteID == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.edges {
		if existing == e {
			return nil
		}
	}
	s.edges = append(s.edges, e)
	return nil
}

// DeleteRoadmap removes a roadmap together with its topics and every edge
// touching those topics.
func (s *MemoryStore) DeleteRoadmap(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roadmaps[id]; !ok {
		return fmt.Errorf("roadmap %s: %w", id, ErrNotFound)
	}
	removed := make(map[string]bool)
	for tid, t := range s.topics {
		if t.RoadmapID == id {
			removed[tid] = true
			delete(s.topics, tid)
		}
	}
	kept := s.edges[:0]
	for _, e := range s.edges {
		if !removed[e.TopicID] && !removed[e.PrerequisiteID] {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	delete(s.roadmaps, id)
	return nil
}

// sortTopics orders topics by creation time, then id, which is the stable
// order used for layout slots and the linear unlock policy.
func sortTopics(topics []Topic) {
	sort.SliceStable(topics, func(i, j int) bool {
		if !topics[i].CreatedAt.Equal(topics[j].CreatedAt) {
			return topics[i].CreatedAt.Before(topics[j].CreatedAt)
		}
		return topics[i].ID < topics[j].ID
	})
}
