package roadmap

import (
	"context"
	"log/slog"
	"time"
)

// JSONCache is the subset of the platform cache used for read-through caching.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedStore is a read-through cache in front of another ContentStore.
// Content is immutable once authored, so entries are only dropped on writes
// made through this store or when their TTL expires.
type CachedStore struct {
	next  ContentStore
	cache JSONCache
	ttl   time.Duration
}

// NewCachedStore wraps next with cache. A non-positive ttl defaults to five minutes.
func NewCachedStore(next ContentStore, cache JSONCache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{next: next, cache: cache, ttl: ttl}
}

const (
	keyRoadmapList = "kt:roadmaps"
	keyEdges       = "kt:edges"
)

func keyRoadmap(id string) string       { return "kt:roadmap:" + id }
func keyRoadmapTopics(id string) string { return "kt:roadmap:" + id + ":topics" }
func keyTopic(id string) string         { return "kt:topic:" + id }

func (s *CachedStore) ListRoadmaps(ctx context.Context) ([]Roadmap, error) {
	return readThrough(ctx, s, keyRoadmapList, func() ([]Roadmap, error) {
		return s.next.ListRoadmaps(ctx)
	})
}

func (s *CachedStore) GetRoadmap(ctx context.Context, id string) (*Roadmap, error) {
	return readThrough(ctx, s, keyRoadmap(id), func() (*Roadmap, error) {
		return s.next.GetRoadmap(ctx, id)
	})
}

func (s *CachedStore) ListTopics(ctx context.Context, roadmapID string) ([]Topic, error) {
	return readThrough(ctx, s, keyRoadmapTopics(roadmapID), func() ([]Topic, error) {
		return s.next.ListTopics(ctx, roadmapID)
	})
}

func (s *CachedStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	return readThrough(ctx, s, keyTopic(id), func() (*Topic, error) {
		return s.next.GetTopic(ctx, id)
	})
}

func (s *CachedStore) ListEdges(ctx context.Context) ([]Edge, error) {
	return readThrough(ctx, s, keyEdges, func() ([]Edge, error) {
		return s.next.ListEdges(ctx)
	})
}

func (s *CachedStore) CreateRoadmap(ctx context.Context, r Roadmap) (string, error) {
	id, err := s.next.CreateRoadmap(ctx, r)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, keyRoadmapList)
	return id, nil
}

func (s *CachedStore) CreateTopic(ctx context.Context, t Topic) (string, error) {
	id, err := s.next.CreateTopic(ctx, t)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, keyRoadmapTopics(t.RoadmapID))
	return id, nil
}

func (s *CachedStore) AddEdge(ctx context.Context, e Edge) error {
	if err := s.next.AddEdge(ctx, e); err != nil {
		return err
	}
	s.invalidate(ctx, keyEdges)
	return nil
}

func (s *CachedStore) DeleteRoadmap(ctx context.Context, id string) error {
	topics, err := s.next.ListTopics(ctx, id)
	if err != nil {
		return err
	}
	if err := s.next.DeleteRoadmap(ctx, id); err != nil {
		return err
	}
	keys := []string{keyRoadmapList, keyRoadmap(id), keyRoadmapTopics(id), keyEdges}
	for _, t := range topics {
		keys = append(keys, keyTopic(t.ID))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("content cache invalidation failed", "keys", keys, "error", err)
	}
}

// readThrough serves key from the cache, falling back to load on a miss or
// a cache error. Cache failures never fail the read.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func() (T, error)) (T, error) {
	var cached T
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		slog.Warn("content cache read failed", "key", key, "error", err)
	}
	if hit {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := s.cache.SetJSON(ctx, key, v, s.ttl); err != nil {
		slog.Warn("content cache write failed", "key", key, "error", err)
	}
	return v, nil
}
