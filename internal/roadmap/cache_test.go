package roadmap

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mapCache is a JSONCache backed by a map, with an optional forced error.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

var errCacheDown = errors.New("cache down")

func (c *mapCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return false, errCacheDown
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errCacheDown
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errCacheDown
	}
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// countingStore counts ListTopics calls on the wrapped store.
type countingStore struct {
	*MemoryStore
	listTopics int
}

func (s *countingStore) ListTopics(ctx context.Context, roadmapID string) ([]Topic, error) {
	s.listTopics++
	return s.MemoryStore.ListTopics(ctx, roadmapID)
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	next := &countingStore{MemoryStore: NewMemoryStore()}
	cache := newMapCache()
	s := NewCachedStore(next, cache, time.Minute)

	rm, _ := s.CreateRoadmap(ctx, Roadmap{Title: "Go"})
	if _, err := s.CreateTopic(ctx, Topic{RoadmapID: rm, Title: "Syntax"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		topics, err := s.ListTopics(ctx, rm)
		if err != nil || len(topics) != 1 {
			t.Fatalf("ListTopics() = %v, %v", topics, err)
		}
	}
	if next.listTopics != 1 {
		t.Errorf("backing ListTopics called %d times, want 1", next.listTopics)
	}

	// A write through the cache invalidates the topic list.
	if _, err := s.CreateTopic(ctx, Topic{RoadmapID: rm, Title: "Types"}); err != nil {
		t.Fatal(err)
	}
	topics, _ := s.ListTopics(ctx, rm)
	if len(topics) != 2 {
		t.Errorf("ListTopics() after write = %d topics, want 2", len(topics))
	}
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	s := NewCachedStore(NewMemoryStore(), cache, 0)

	if _, err := s.GetRoadmap(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRoadmap() error = %v, want ErrNotFound", err)
	}
	if cache.has(keyRoadmap("missing")) {
		t.Error("not-found result was cached")
	}
}

func TestCachedStore_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	s := NewCachedStore(NewMemoryStore(), cache, time.Minute)

	rm, err := s.CreateRoadmap(ctx, Roadmap{Title: "Go"})
	if err != nil {
		t.Fatal(err)
	}
	cache.failing = true

	got, err := s.GetRoadmap(ctx, rm)
	if err != nil {
		t.Fatalf("GetRoadmap() with failing cache error = %v", err)
	}
	if got.Title != "Go" {
		t.Errorf("GetRoadmap() = %+v", got)
	}
	if err := s.AddEdge(ctx, Edge{TopicID: "a", PrerequisiteID: "b"}); err != nil {
		t.Errorf("AddEdge() with failing cache error = %v", err)
	}
}

func TestCachedStore_DeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	s := NewCachedStore(NewMemoryStore(), cache, time.Minute)

	rm, _ := s.CreateRoadmap(ctx, Roadmap{Title: "Go"})
	tid, _ := s.CreateTopic(ctx, Topic{RoadmapID: rm, Title: "Syntax"})
	if _, err := s.GetTopic(ctx, tid); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListRoadmaps(ctx); err != nil {
		t.Fatal(err)
	}
	if !cache.has(keyTopic(tid)) || !cache.has(keyRoadmapList) {
		t.Fatal("expected topic and roadmap list to be cached")
	}

	if err := s.DeleteRoadmap(ctx, rm); err != nil {
		t.Fatal(err)
	}
	if cache.has(keyTopic(tid)) || cache.has(keyRoadmapList) {
		t.Error("delete left stale cache entries")
	}
	if _, err := s.GetTopic(ctx, tid); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTopic() after delete error = %v, want ErrNotFound", err)
	}
}
