package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LikhithSP/Knowledge-Tree/internal/layout"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
	"github.com/LikhithSP/Knowledge-Tree/internal/unlock"
)

// ServiceConfig holds dependencies for the orchestration service.
type ServiceConfig struct {
	Content       roadmap.ContentStore
	Completions   progress.CompletionStore
	Events        progress.EventLogger
	Engine        *layout.Engine
	Policy        unlock.Policy
	PassThreshold int
	LayoutCache   roadmap.JSONCache // optional
	LayoutTTL     time.Duration
}

// Service opens learner sessions by fetching content and progress from the
// collaborating stores.
type Service struct {
	cfg ServiceConfig
}

// NewService creates a service. Missing optional dependencies take defaults.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Engine == nil {
		cfg.Engine = layout.NewEngine(layout.DefaultConfig(), layout.ModeLayered)
	}
	if cfg.Events == nil {
		cfg.Events = progress.NopEventLogger{}
	}
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = roadmap.DefaultPassThreshold
	}
	if cfg.LayoutTTL <= 0 {
		cfg.LayoutTTL = time.Hour
	}
	return &Service{cfg: cfg}
}

// Content returns the content store.
func (s *Service) Content() roadmap.ContentStore { return s.cfg.Content }

// Open builds a session for userID on roadmapID.
func (s *Service) Open(ctx context.Context, userID, roadmapID string) (*Orchestrator, error) {
	rm, err := s.cfg.Content.GetRoadmap(ctx, roadmapID)
	if err != nil {
		return nil, err
	}
	topics, err := s.cfg.Content.ListTopics(ctx, roadmapID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	edges, err := s.cfg.Content.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	records, err := s.cfg.Completions.ListCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	lay := s.layout(ctx, topics, edges)

	return New(Options{
		UserID:        userID,
		Policy:        s.cfg.Policy,
		PassThreshold: s.cfg.PassThreshold,
		Store:         s.cfg.Completions,
		Events:        s.cfg.Events,
	}, *rm, topics, edges, lay, progress.CompletedSet(records)), nil
}

// OpenForTopic opens the session on the roadmap that owns topicID.
func (s *Service) OpenForTopic(ctx context.Context, userID, topicID string) (*Orchestrator, error) {
	t, err := s.cfg.Content.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, userID, t.RoadmapID)
}

// layout computes positions, memoised in the layout cache when one is set.
func (s *Service) layout(ctx context.Context, topics []roadmap.Topic, edges []roadmap.Edge) layout.Result {
	if s.cfg.LayoutCache == nil {
		return s.cfg.Engine.Layout(topics, edges)
	}

	key := "kt:layout:" + s.cfg.Engine.Key(topics, edges)
	var cached layout.Result
	hit, err := s.cfg.LayoutCache.GetJSON(ctx, key, &cached)
	if err != nil {
		slog.Warn("layout cache read failed", "error", err)
	}
	if hit {
		return cached
	}

	res := s.cfg.Engine.Layout(topics, edges)
	if err := s.cfg.LayoutCache.SetJSON(ctx, key, res, s.cfg.LayoutTTL); err != nil {
		slog.Warn("layout cache write failed", "error", err)
	}
	return res
}

// Summary builds the dashboard summary for userID.
func (s *Service) Summary(ctx context.Context, userID string) (progress.Summary, error) {
	records, err := s.cfg.Completions.ListCompletions(ctx, userID)
	if err != nil {
		return progress.Summary{}, fmt.Errorf("list completions: %w", err)
	}
	roadmaps, err := s.cfg.Content.ListRoadmaps(ctx)
	if err != nil {
		return progress.Summary{}, fmt.Errorf("list roadmaps: %w", err)
	}
	total := 0
	for _, r := range roadmaps {
		topics, err := s.cfg.Content.ListTopics(ctx, r.ID)
		if err != nil {
			return progress.Summary{}, fmt.Errorf("list topics: %w", err)
		}
		total += len(topics)
	}
	return progress.Summarize(records, total), nil
}

// RoadmapProgress pairs a learner's view of a roadmap with their records on it.
type RoadmapProgress struct {
	View    View
	Records map[string]progress.CompletionRecord // by topic id
}

// Progress returns the learner's view of every roadmap, for reporting.
func (s *Service) Progress(ctx context.Context, userID string) ([]RoadmapProgress, error) {
	roadmaps, err := s.cfg.Content.ListRoadmaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roadmaps: %w", err)
	}
	records, err := s.cfg.Completions.ListCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	byTopic := make(map[string]progress.CompletionRecord, len(records))
	for _, r := range records {
		byTopic[r.TopicID] = r
	}

	out := make([]RoadmapProgress, 0, len(roadmaps))
	for _, r := range roadmaps {
		o, err := s.Open(ctx, userID, r.ID)
		if err != nil {
			return nil, err
		}
		view := o.View()
		mine := make(map[string]progress.CompletionRecord)
		for _, n := range view.Nodes {
			if rec, ok := byTopic[n.ID]; ok {
				mine[n.ID] = rec
			}
		}
		out = append(out, RoadmapProgress{View: view, Records: mine})
	}
	return out, nil
}
