package roadmap

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Data Science", "data science"},
		{"  data   SCIENCE ", "data science"},
		{"Ｄａｔａ Science", "data science"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindDuplicates(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := []RoadmapStats{
		{Roadmap: Roadmap{ID: "old-big", Title: "Go", CreatedAt: base}, Topics: 5},
		{Roadmap: Roadmap{ID: "new-small", Title: "go", CreatedAt: base.Add(time.Hour)}, Topics: 2},
		{Roadmap: Roadmap{ID: "new-big", Title: "GO ", CreatedAt: base.Add(2 * time.Hour)}, Topics: 5},
		{Roadmap: Roadmap{ID: "solo", Title: "Rust", CreatedAt: base}, Topics: 1},
	}

	groups := FindDuplicates(stats)
	if len(groups) != 1 {
		t.Fatalf("FindDuplicates() = %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Keep.ID != "new-big" {
		t.Errorf("Keep = %s, want new-big (most topics, then newest)", g.Keep.ID)
	}
	var removed []string
	for _, r := range g.Remove {
		removed = append(removed, r.ID)
	}
	sort.Strings(removed)
	if len(removed) != 2 || removed[0] != "new-small" || removed[1] != "old-big" {
		t.Errorf("Remove = %v", removed)
	}
}

func TestDeduplicateAndRemoveEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	keep, _ := store.CreateRoadmap(ctx, Roadmap{Title: "Machine Learning", CreatedAt: base})
	store.CreateTopic(ctx, Topic{RoadmapID: keep, Title: "Regression"})
	store.CreateTopic(ctx, Topic{RoadmapID: keep, Title: "Trees"})
	dup, _ := store.CreateRoadmap(ctx, Roadmap{Title: "machine learning", CreatedAt: base.Add(time.Hour)})
	store.CreateTopic(ctx, Topic{RoadmapID: dup, Title: "Regression"})
	empty, _ := store.CreateRoadmap(ctx, Roadmap{Title: "Empty", CreatedAt: base})

	removed, err := Deduplicate(ctx, store, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != dup {
		t.Errorf("Deduplicate(dry run) = %v, want [%s]", removed, dup)
	}
	if all, _ := store.ListRoadmaps(ctx); len(all) != 3 {
		t.Fatalf("dry run deleted roadmaps, %d left", len(all))
	}

	if _, err := Deduplicate(ctx, store, false); err != nil {
		t.Fatal(err)
	}
	removed, err = RemoveEmpty(ctx, store, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != empty {
		t.Errorf("RemoveEmpty() = %v, want [%s]", removed, empty)
	}

	all, _ := store.ListRoadmaps(ctx)
	if len(all) != 1 || all[0].ID != keep {
		t.Errorf("roadmaps left = %+v, want only %s", all, keep)
	}
}
