package roadmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DuplicateGroup is a set of roadmaps sharing a normalised title. Keep is the
// survivor; Remove holds the rest.
type DuplicateGroup struct {
	Title  string
	Keep   RoadmapStats
	Remove []RoadmapStats
}

// RoadmapStats pairs a roadmap with its topic count.
type RoadmapStats struct {
	Roadmap
	Topics int
}

// NormalizeTitle folds case and compatibility forms so that "Data Science",
// "data science" and "Ｄａｔａ Science" group together.
func NormalizeTitle(title string) string {
	folded := cases.Fold().String(norm.NFKC.String(title))
	return strings.Join(strings.Fields(folded), " ")
}

// CollectStats lists every roadmap with its topic count.
func CollectStats(ctx context.Context, store ContentStore) ([]RoadmapStats, error) {
	roadmaps, err := store.ListRoadmaps(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoadmapStats, 0, len(roadmaps))
	for _, r := range roadmaps {
		topics, err := store.ListTopics(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("list topics for %s: %w", r.ID, err)
		}
		out = append(out, RoadmapStats{Roadmap: r, Topics: len(topics)})
	}
	return out, nil
}

// FindDuplicates groups roadmaps by normalised title. Within a group the
// roadmap with the most topics survives; ties go to the newest.
func FindDuplicates(stats []RoadmapStats) []DuplicateGroup {
	groups := make(map[string][]RoadmapStats)
	var order []string
	for _, s := range stats {
		key := NormalizeTitle(s.Title)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}

	var out []DuplicateGroup
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Topics != group[j].Topics {
				return group[i].Topics > group[j].Topics
			}
			return group[i].CreatedAt.After(group[j].CreatedAt)
		})
		out = append(out, DuplicateGroup{Title: group[0].Title, Keep: group[0], Remove: group[1:]})
	}
	return out
}

// Deduplicate removes every duplicate roadmap found by FindDuplicates. With
// dryRun set it only reports. It returns the ids removed (or to be removed).
func Deduplicate(ctx context.Context, store ContentStore, dryRun bool) ([]string, error) {
	stats, err := CollectStats(ctx, store)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, g := range FindDuplicates(stats) {
		slog.Info("duplicate roadmaps found",
			"title", g.Title,
			"keep", g.Keep.ID,
			"keep_topics", g.Keep.Topics,
			"duplicates", len(g.Remove),
		)
		for _, r := range g.Remove {
			if !dryRun {
				if err := store.DeleteRoadmap(ctx, r.ID); err != nil {
					return removed, fmt.Errorf("delete duplicate %s: %w", r.ID, err)
				}
			}
			slog.Info("duplicate roadmap removed", "id", r.ID, "topics", r.Topics, "dry_run", dryRun)
			removed = append(removed, r.ID)
		}
	}
	return removed, nil
}

// RemoveEmpty deletes roadmaps that have no topics.
func RemoveEmpty(ctx context.Context, store ContentStore, dryRun bool) ([]string, error) {
	stats, err := CollectStats(ctx, store)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, s := range stats {
		if s.Topics > 0 {
			continue
		}
		if !dryRun {
			if err := store.DeleteRoadmap(ctx, s.ID); err != nil {
				return removed, fmt.Errorf("delete empty roadmap %s: %w", s.ID, err)
			}
		}
		slog.Info("empty roadmap removed", "id", s.ID, "title", s.Title, "dry_run", dryRun)
		removed = append(removed, s.ID)
	}
	return removed, nil
}
