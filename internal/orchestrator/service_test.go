package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LikhithSP/Knowledge-Tree/internal/layout"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
	"github.com/LikhithSP/Knowledge-Tree/internal/unlock"
)

// layoutCache records layout cache traffic.
type layoutCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newLayoutCache() *layoutCache {
	return &layoutCache{data: make(map[string][]byte)}
}

func (c *layoutCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *layoutCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.sets++
	c.data[key] = raw
	return nil
}

func (c *layoutCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

// seed stores the diamond roadmap plus a second single-topic roadmap and
// returns the stored ids by letter.
func seed(t *testing.T, store roadmap.ContentStore) (roadmapID string, ids map[string]string) {
	t.Helper()
	ctx := context.Background()

	roadmapID, err := store.CreateRoadmap(ctx, roadmap.Roadmap{Title: "Diamond", CreatedAt: base})
	if err != nil {
		t.Fatal(err)
	}
	_, topics, edges := diamond()
	ids = make(map[string]string)
	for _, tp := range topics {
		tp.ID = ""
		tp.RoadmapID = roadmapID
		id, err := store.CreateTopic(ctx, tp)
		if err != nil {
			t.Fatal(err)
		}
		ids[tp.Title[len("Topic "):]] = id
	}
	for _, e := range edges {
		if err := store.AddEdge(ctx, roadmap.Edge{TopicID: ids[e.TopicID], PrerequisiteID: ids[e.PrerequisiteID]}); err != nil {
			t.Fatal(err)
		}
	}

	other, err := store.CreateRoadmap(ctx, roadmap.Roadmap{Title: "Other", CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	solo, err := store.CreateTopic(ctx, roadmap.Topic{RoadmapID: other, Title: "Solo"})
	if err != nil {
		t.Fatal(err)
	}
	// Cross-roadmap edge: Solo requires D. It must not gate anything.
	if err := store.AddEdge(ctx, roadmap.Edge{TopicID: solo, PrerequisiteID: ids["D"]}); err != nil {
		t.Fatal(err)
	}
	ids["Solo"] = solo
	return roadmapID, ids
}

func TestService_OpenAndComplete(t *testing.T) {
	ctx := context.Background()
	content := roadmap.NewMemoryStore()
	completions := progress.NewMemoryStore()
	rmID, ids := seed(t, content)

	svc := NewService(ServiceConfig{Content: content, Completions: completions})

	o, err := svc.Open(ctx, "u1", rmID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s, _ := o.Status(ids["A"]); s != unlock.StatusUnlocked {
		t.Errorf("A = %s, want unlocked", s)
	}
	// The cross-roadmap edge touching D is reported, not applied.
	var dropped int
	for _, a := range o.View().Anomalies {
		if a.Kind == layout.AnomalyDroppedEdge {
			dropped++
		}
	}
	if dropped != 1 {
		t.Errorf("dropped edge anomalies = %d, want 1", dropped)
	}

	if _, err := o.Complete(ctx, ids["A"], 90); err != nil {
		t.Fatal(err)
	}

	// A fresh session sees the persisted completion.
	o2, err := svc.OpenForTopic(ctx, "u1", ids["B"])
	if err != nil {
		t.Fatal(err)
	}
	if !o2.IsCompleted(ids["A"]) {
		t.Error("new session lost A's completion")
	}
	if s, _ := o2.Status(ids["B"]); s != unlock.StatusUnlocked {
		t.Errorf("B = %s, want unlocked", s)
	}

	// Other learners are unaffected.
	o3, _ := svc.Open(ctx, "u2", rmID)
	if o3.IsCompleted(ids["A"]) {
		t.Error("u2 sees u1's completion")
	}

	// Solo is unlocked even though its cross-roadmap prerequisite is not done.
	solo, err := svc.OpenForTopic(ctx, "u1", ids["Solo"])
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := solo.Status(ids["Solo"]); s != unlock.StatusUnlocked {
		t.Errorf("Solo = %s, want unlocked", s)
	}
}

func TestService_OpenMissing(t *testing.T) {
	svc := NewService(ServiceConfig{Content: roadmap.NewMemoryStore(), Completions: progress.NewMemoryStore()})

	if _, err := svc.Open(context.Background(), "u1", "nope"); !errors.Is(err, roadmap.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.OpenForTopic(context.Background(), "u1", "nope"); !errors.Is(err, roadmap.ErrNotFound) {
		t.Errorf("OpenForTopic() error = %v, want ErrNotFound", err)
	}
}

func TestService_LayoutCache(t *testing.T) {
	ctx := context.Background()
	content := roadmap.NewMemoryStore()
	rmID, ids := seed(t, content)
	cache := newLayoutCache()

	svc := NewService(ServiceConfig{
		Content:     content,
		Completions: progress.NewMemoryStore(),
		LayoutCache: cache,
	})

	first, err := svc.Open(ctx, "u1", rmID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Open(ctx, "u2", rmID)
	if err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 || cache.hits != 1 {
		t.Errorf("cache sets/hits = %d/%d, want 1/1", cache.sets, cache.hits)
	}
	for key := range cache.data {
		if !strings.HasPrefix(key, "kt:layout:") {
			t.Errorf("unexpected cache key %q", key)
		}
	}

	a1, a2 := first.View().Nodes, second.View().Nodes
	for i := range a1 {
		if a1[i].X != a2[i].X || a1[i].Y != a2[i].Y || a1[i].Level != a2[i].Level {
			t.Errorf("cached layout differs for %s: %+v vs %+v", ids["A"], a1[i], a2[i])
		}
	}
}

func TestService_SummaryAndProgress(t *testing.T) {
	ctx := context.Background()
	content := roadmap.NewMemoryStore()
	completions := progress.NewMemoryStore()
	rmID, ids := seed(t, content)
	svc := NewService(ServiceConfig{Content: content, Completions: completions})

	o, _ := svc.Open(ctx, "u1", rmID)
	for _, id := range []string{ids["A"], ids["B"], ids["C"]} {
		if _, err := o.Complete(ctx, id, 100); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TopicsCompleted != 3 || summary.QuizzesCompleted != 3 || summary.TotalTopics != 5 || summary.HoursCompleted != 1 {
		t.Errorf("Summary() = %+v", summary)
	}

	all, err := svc.Progress(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("Progress() = %d roadmaps, want 2", len(all))
	}
	if all[0].View.Roadmap.ID != rmID || all[0].View.Completed != 3 || len(all[0].Records) != 3 {
		t.Errorf("diamond progress = completed %d, records %d", all[0].View.Completed, len(all[0].Records))
	}
	if len(all[1].Records) != 0 {
		t.Errorf("other roadmap records = %v, want none", all[1].Records)
	}
}
