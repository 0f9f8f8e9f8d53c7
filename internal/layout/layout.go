// Package layout assigns 2-D coordinates to roadmap topics so that
// prerequisite chains read top to bottom without overlapping nodes.
//
// Coordinates are abstract units; renderers scale them to pixels. Rendered
// nodes are roughly 320-400 units wide and 110-200 units tall, so the default
// spacing keeps neighbouring boxes apart.
package layout

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

// Mode selects the layout algorithm.
type Mode string

const (
	// ModeLayered places topics in rows by longest prerequisite chain.
	ModeLayered Mode = "layered"
	// ModeSnake places topics in creation order on a fixed-width grid whose
	// rows alternate direction. Edges are ignored.
	ModeSnake Mode = "snake"
)

// ParseMode converts a configuration string to a Mode. Empty means ModeLayered.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLayered:
		return ModeLayered, nil
	case ModeSnake:
		return ModeSnake, nil
	}
	return "", fmt.Errorf("unknown layout mode %q", s)
}

// Config holds spacing and origin parameters.
type Config struct {
	HorizontalSpacing float64
	VerticalSpacing   float64
	OriginX           float64
	OriginY           float64
	Columns           int // snake mode only
}

// DefaultConfig returns the spacing used by the web roadmap view.
func DefaultConfig() Config {
	return Config{
		HorizontalSpacing: 400,
		VerticalSpacing:   200,
		OriginX:           400,
		OriginY:           100,
		Columns:           3,
	}
}

// Position is a node's top-left anchor.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Anomaly kinds.
const (
	AnomalyCycle       = "cycle"
	AnomalyDroppedEdge = "dropped_edge"
)

// Anomaly records a data-integrity problem found while laying out. Layout
// recovers from every anomaly; they are informational.
type Anomaly struct {
	Kind           string `json:"kind"`
	TopicID        string `json:"topic_id"`
	PrerequisiteID string `json:"prerequisite_id"`
}

// Result is the output of a layout run.
type Result struct {
	Positions map[string]Position
	Levels    map[string]int
	Anomalies []Anomaly
}

// Engine lays out roadmaps with a fixed mode and configuration.
type Engine struct {
	cfg  Config
	mode Mode
}

// NewEngine creates an engine. Zero-valued config fields take their defaults.
func NewEngine(cfg Config, mode Mode) *Engine {
	def := DefaultConfig()
	if cfg.HorizontalSpacing <= 0 {
		cfg.HorizontalSpacing = def.HorizontalSpacing
	}
	if cfg.VerticalSpacing <= 0 {
		cfg.VerticalSpacing = def.VerticalSpacing
	}
	if cfg.Columns <= 0 {
		cfg.Columns = def.Columns
	}
	if mode == "" {
		mode = ModeLayered
	}
	return &Engine{cfg: cfg, mode: mode}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Mode returns the engine's layout mode.
func (e *Engine) Mode() Mode { return e.mode }

// Layout positions topics.
func (e *Engine) Layout(topics []roadmap.Topic, edges []roadmap.Edge) Result {
	if e.mode == ModeSnake {
		return Snake(e.cfg, topics)
	}
	return Layered(e.cfg, topics, edges)
}

// Levels computes, for each topic, the length of the longest prerequisite
// chain ending at it. Shared prerequisites take the max, never the sum. A
// prerequisite reached while its own level is still being computed closes a
// cycle; that back-reference counts as level 0 and is reported.
func Levels(topics []roadmap.Topic, edges []roadmap.Edge) (map[string]int, []Anomaly) {
	prereqs, dropped := roadmap.Prerequisites(topics, edges)
	anomalies := droppedAnomalies(topics, dropped)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(topics))
	levels := make(map[string]int, len(topics))

	var visit func(id string) int
	visit = func(id string) int {
		switch state[id] {
		case done:
			return levels[id]
		case visiting:
			return -1
		}
		state[id] = visiting

		level := 0
		for _, p := range prereqs[id] {
			pl := visit(p)
			if pl < 0 {
				anomalies = append(anomalies, Anomaly{Kind: AnomalyCycle, TopicID: id, PrerequisiteID: p})
				pl = 0
			}
			if pl+1 > level {
				level = pl + 1
			}
		}

		state[id] = done
		levels[id] = level
		return level
	}

	for _, t := range topics {
		visit(t.ID)
	}
	return levels, anomalies
}

// droppedAnomalies reports dropped edges that touch the roadmap. Edges with
// neither endpoint in the roadmap belong to another roadmap and are not
// anomalies here.
func droppedAnomalies(topics []roadmap.Topic, dropped []roadmap.Edge) []Anomaly {
	known := make(map[string]bool, len(topics))
	for _, t := range topics {
		known[t.ID] = true
	}
	var out []Anomaly
	for _, e := range dropped {
		switch {
		case e.TopicID == e.PrerequisiteID && known[e.TopicID]:
			out = append(out, Anomaly{Kind: AnomalyCycle, TopicID: e.TopicID, PrerequisiteID: e.PrerequisiteID})
		case known[e.TopicID] || known[e.PrerequisiteID]:
			out = append(out, Anomaly{Kind: AnomalyDroppedEdge, TopicID: e.TopicID, PrerequisiteID: e.PrerequisiteID})
		}
	}
	return out
}

// Layered groups topics into rows by level and centres each row on OriginX.
// Within a row topics keep their input order.
func Layered(cfg Config, topics []roadmap.Topic, edges []roadmap.Edge) Result {
	levels, anomalies := Levels(topics, edges)

	rows := make(map[int][]string)
	for _, t := range topics {
		l := levels[t.ID]
		rows[l] = append(rows[l], t.ID)
	}

	positions := make(map[string]Position, len(topics))
	for level, ids := range rows {
		offset := float64(len(ids)-1) * cfg.HorizontalSpacing / 2
		for slot, id := range ids {
			positions[id] = Position{
				X: float64(slot)*cfg.HorizontalSpacing - offset + cfg.OriginX,
				Y: float64(level)*cfg.VerticalSpacing + cfg.OriginY,
			}
		}
	}

	for _, a := range anomalies {
		slog.Debug("layout anomaly", "kind", a.Kind, "topic_id", a.TopicID, "prerequisite_id", a.PrerequisiteID)
	}
	return Result{Positions: positions, Levels: levels, Anomalies: anomalies}
}

// Snake lays topics out in creation order, Columns per row, reversing
// direction on every other row. Levels report the row index.
func Snake(cfg Config, topics []roadmap.Topic) Result {
	cols := cfg.Columns
	if cols <= 0 {
		cols = DefaultConfig().Columns
	}

	ordered := append([]roadmap.Topic{}, topics...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	offset := float64(cols-1) * cfg.HorizontalSpacing / 2
	positions := make(map[string]Position, len(ordered))
	levels := make(map[string]int, len(ordered))
	for i, t := range ordered {
		row, col := i/cols, i%cols
		if row%2 == 1 {
			col = cols - 1 - col
		}
		positions[t.ID] = Position{
			X: float64(col)*cfg.HorizontalSpacing - offset + cfg.OriginX,
			Y: float64(row)*cfg.VerticalSpacing + cfg.OriginY,
		}
		levels[t.ID] = row
	}
	return Result{Positions: positions, Levels: levels}
}
