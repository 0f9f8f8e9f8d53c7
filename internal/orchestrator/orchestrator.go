// Package orchestrator composes unlock statuses and layout positions into the
// node and edge lists a roadmap renderer consumes, and applies quiz
// completions to a learner's session.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/LikhithSP/Knowledge-Tree/internal/layout"
	"github.com/LikhithSP/Knowledge-Tree/internal/progress"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
	"github.com/LikhithSP/Knowledge-Tree/internal/unlock"
)

var (
	// ErrTopicLocked is returned when a locked topic is opened or completed.
	ErrTopicLocked = errors.New("topic is locked")
	// ErrInvalidScore is returned for scores outside 0..100.
	ErrInvalidScore = errors.New("score must be between 0 and 100")
)

// Node is one topic as the renderer draws it.
type Node struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	ShortDescription string        `json:"short_description,omitempty"`
	X                float64       `json:"x"`
	Y                float64       `json:"y"`
	Level            int           `json:"level"`
	Status           unlock.Status `json:"status"`
}

// EdgeView is one prerequisite arrow, drawn from Source (the prerequisite)
// to Target (the dependent topic).
type EdgeView struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// View is the render-ready state of a roadmap for one learner.
type View struct {
	Roadmap   roadmap.Roadmap  `json:"roadmap"`
	Nodes     []Node           `json:"nodes"`
	Edges     []EdgeView       `json:"edges"`
	Anomalies []layout.Anomaly `json:"anomalies,omitempty"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
}

// CompletionResult describes the outcome of a completion event.
type CompletionResult struct {
	TopicID          string   `json:"topic_id"`
	Score            int      `json:"score"`
	Passed           bool     `json:"passed"`
	AlreadyCompleted bool     `json:"already_completed,omitempty"`
	Unlocked         []string `json:"unlocked,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	UserID        string
	Policy        unlock.Policy
	PassThreshold int
	Store         progress.CompletionStore
	Events        progress.EventLogger
}

// Orchestrator holds one learner's session on one roadmap. The completed set
// only grows; layout is computed once since it does not depend on progress.
type Orchestrator struct {
	opts    Options
	roadmap roadmap.Roadmap
	topics  []roadmap.Topic
	byID    map[string]int
	edges   []EdgeView
	layout  layout.Result

	writeMu   sync.Mutex // serialises Complete
	mu        sync.RWMutex
	completed map[string]bool
	statuses  map[string]unlock.Status
}

// New builds a session from content, a precomputed layout and the learner's
// current completed set.
func New(opts Options, rm roadmap.Roadmap, topics []roadmap.Topic, edges []roadmap.Edge, lay layout.Result, completed map[string]bool) *Orchestrator {
	if opts.Policy == "" {
		opts.Policy = unlock.PolicyDAG
	}
	if opts.PassThreshold == 0 {
		opts.PassThreshold = roadmap.DefaultPassThreshold
	}
	if opts.Events == nil {
		opts.Events = progress.NopEventLogger{}
	}

	o := &Orchestrator{
		opts:      opts,
		roadmap:   rm,
		topics:    append([]roadmap.Topic{}, topics...),
		byID:      make(map[string]int, len(topics)),
		layout:    lay,
		completed: make(map[string]bool, len(completed)),
	}
	for i, t := range o.topics {
		o.byID[t.ID] = i
	}
	for id, done := range completed {
		if done {
			o.completed[id] = true
		}
	}

	prereqs, _ := roadmap.Prerequisites(o.topics, edges)
	for _, t := range o.topics {
		for _, p := range prereqs[t.ID] {
			o.edges = append(o.edges, EdgeView{ID: p + "-" + t.ID, Source: p, Target: t.ID})
		}
	}
	for _, a := range lay.Anomalies {
		slog.Warn("roadmap graph anomaly",
			"roadmap_id", rm.ID,
			"kind", a.Kind,
			"topic_id", a.TopicID,
			"prerequisite_id", a.PrerequisiteID,
		)
	}

	o.statuses = o.evaluate(o.completed)
	return o
}

func (o *Orchestrator) evaluate(completed map[string]bool) map[string]unlock.Status {
	var edges []roadmap.Edge
	for _, e := range o.edges {
		edges = append(edges, roadmap.Edge{TopicID: e.Target, PrerequisiteID: e.Source})
	}
	return o.opts.Policy.Evaluate(o.topics, edges, completed)
}

// View returns the current render state.
func (o *Orchestrator) View() View {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v := View{
		Roadmap:   o.roadmap,
		Nodes:     make([]Node, 0, len(o.topics)),
		Edges:     append([]EdgeView{}, o.edges...),
		Anomalies: o.layout.Anomalies,
		Total:     len(o.topics),
	}
	for _, t := range o.topics {
		pos := o.layout.Positions[t.ID]
		status := o.statuses[t.ID]
		if status == unlock.StatusCompleted {
			v.Completed++
		}
		v.Nodes = append(v.Nodes, Node{
			ID:               t.ID,
			Title:            t.Title,
			ShortDescription: t.ShortDescription,
			X:                pos.X,
			Y:                pos.Y,
			Level:            o.layout.Levels[t.ID],
			Status:           status,
		})
	}
	return v
}

// Status returns a topic's current status.
func (o *Orchestrator) Status(topicID string) (unlock.Status, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.statuses[topicID]
	return s, ok
}

// IsCompleted reports whether the learner has completed topicID.
func (o *Orchestrator) IsCompleted(topicID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.completed[topicID]
}

// Click opens a topic. Locked topics are refused.
func (o *Orchestrator) Click(topicID string) (*roadmap.Topic, error) {
	i, ok := o.byID[topicID]
	if !ok {
		return nil, fmt.Errorf("topic %s: %w", topicID, roadmap.ErrNotFound)
	}
	status, _ := o.Status(topicID)
	if !status.Open() {
		return nil, fmt.Errorf("topic %s: %w", topicID, ErrTopicLocked)
	}
	t := o.topics[i]
	return &t, nil
}

// SubmitQuiz grades answers against the topic's quiz and applies the score
// as a completion event.
func (o *Orchestrator) SubmitQuiz(ctx context.Context, topicID string, answers map[string]int) (CompletionResult, error) {
	t, err := o.Click(topicID)
	if err != nil {
		return CompletionResult{}, err
	}
	if t.Quiz == nil || len(t.Quiz.Questions) == 0 {
		return CompletionResult{}, fmt.Errorf("topic %s has no quiz: %w", topicID, roadmap.ErrInvalidQuiz)
	}
	return o.Complete(ctx, topicID, t.Quiz.Grade(answers))
}

// Complete applies a completion event. A passing score is persisted first;
// only after the write succeeds is the topic added to the completed set and
// statuses recomputed. A failing score or a failed write changes nothing.
func (o *Orchestrator) Complete(ctx context.Context, topicID string, score int) (CompletionResult, error) {
	if score < 0 || score > 100 {
		return CompletionResult{}, ErrInvalidScore
	}
	if _, ok := o.byID[topicID]; !ok {
		return CompletionResult{}, fmt.Errorf("topic %s: %w", topicID, roadmap.ErrNotFound)
	}

	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	status, _ := o.Status(topicID)
	if !status.Open() {
		return CompletionResult{}, fmt.Errorf("topic %s: %w", topicID, ErrTopicLocked)
	}

	res := CompletionResult{TopicID: topicID, Score: score, Passed: roadmap.Passed(score, o.opts.PassThreshold)}
	o.logEvent(ctx, progress.EventQuizSubmitted, topicID, map[string]any{"score": score, "passed": res.Passed})

	if !res.Passed {
		return res, nil
	}
	if status == unlock.StatusCompleted {
		res.AlreadyCompleted = true
		return res, nil
	}

	if o.opts.Store == nil {
		return CompletionResult{}, fmt.Errorf("no completion store configured")
	}
	_, err := o.opts.Store.RecordCompletion(ctx, progress.CompletionRecord{
		UserID:    o.opts.UserID,
		TopicID:   topicID,
		QuizScore: &score,
	})
	switch {
	case errors.Is(err, progress.ErrAlreadyCompleted):
		// Recorded by another session; merge it.
		res.AlreadyCompleted = true
	case err != nil:
		return CompletionResult{}, fmt.Errorf("record completion: %w", err)
	}

	o.mu.Lock()
	before := o.statuses
	o.completed[topicID] = true
	o.statuses = o.evaluate(o.completed)
	for _, t := range o.topics {
		if before[t.ID] == unlock.StatusLocked && o.statuses[t.ID] == unlock.StatusUnlocked {
			res.Unlocked = append(res.Unlocked, t.ID)
		}
	}
	o.mu.Unlock()

	slog.Info("topic completed",
		"user_id", o.opts.UserID,
		"roadmap_id", o.roadmap.ID,
		"topic_id", topicID,
		"score", score,
		"unlocked", len(res.Unlocked),
	)
	o.logEvent(ctx, progress.EventTopicCompleted, topicID, map[string]any{"score": score, "unlocked": res.Unlocked})
	return res, nil
}

func (o *Orchestrator) logEvent(ctx context.Context, eventType, topicID string, data map[string]any) {
	err := o.opts.Events.LogEvent(ctx, progress.Event{
		UserID:    o.opts.UserID,
		RoadmapID: o.roadmap.ID,
		TopicID:   topicID,
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		slog.Warn("failed to log event", "type", eventType, "error", err)
	}
}
