package layout

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func topics(ids ...string) []roadmap.Topic {
	out := make([]roadmap.Topic, len(ids))
	for i, id := range ids {
		out[i] = roadmap.Topic{ID: id, Title: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func edge(topic, prereq string) roadmap.Edge {
	return roadmap.Edge{TopicID: topic, PrerequisiteID: prereq}
}

func diamond() ([]roadmap.Topic, []roadmap.Edge) {
	return topics("A", "B", "C", "D"), []roadmap.Edge{
		edge("B", "A"), edge("C", "A"), edge("D", "B"), edge("D", "C"),
	}
}

func TestLevels_Diamond(t *testing.T) {
	ts, es := diamond()
	levels, anomalies := Levels(ts, es)

	want := map[string]int{"A": 0, "B": 1, "C": 1, "D": 2}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels() = %v, want %v", levels, want)
	}
	if len(anomalies) != 0 {
		t.Errorf("anomalies = %v, want none", anomalies)
	}
}

func TestLevels_LongestChainWins(t *testing.T) {
	// A -> B -> C -> D and a shortcut A -> D.
	ts := topics("A", "B", "C", "D")
	es := []roadmap.Edge{edge("B", "A"), edge("C", "B"), edge("D", "C"), edge("D", "A")}

	levels, _ := Levels(ts, es)
	if levels["D"] != 3 {
		t.Errorf("level(D) = %d, want 3", levels["D"])
	}
}

func TestLevels_Cycle(t *testing.T) {
	ts := topics("X", "Y")
	es := []roadmap.Edge{edge("X", "Y"), edge("Y", "X")}

	levels, anomalies := Levels(ts, es)
	for _, id := range []string{"X", "Y"} {
		if l, ok := levels[id]; !ok || l < 0 {
			t.Errorf("level(%s) = %d (present %v), want non-negative", id, l, ok)
		}
	}
	if len(anomalies) != 1 || anomalies[0].Kind != AnomalyCycle {
		t.Fatalf("anomalies = %v, want one cycle", anomalies)
	}
	// X is visited first, so the back reference is Y -> X.
	if got := anomalies[0]; got.TopicID != "Y" || got.PrerequisiteID != "X" {
		t.Errorf("cycle anomaly = %+v, want Y->X", got)
	}
	if levels["Y"] != 1 || levels["X"] != 2 {
		t.Errorf("levels = %v, want Y=1 X=2", levels)
	}
}

func TestLevels_DroppedEdges(t *testing.T) {
	ts := topics("A", "B")
	es := []roadmap.Edge{
		edge("B", "A"),
		edge("B", "ghost"),
		edge("A", "A"),
		edge("elsewhere", "also-elsewhere"),
	}

	levels, anomalies := Levels(ts, es)
	if levels["A"] != 0 || levels["B"] != 1 {
		t.Errorf("levels = %v, want A=0 B=1", levels)
	}
	want := []Anomaly{
		{Kind: AnomalyDroppedEdge, TopicID: "B", PrerequisiteID: "ghost"},
		{Kind: AnomalyCycle, TopicID: "A", PrerequisiteID: "A"},
	}
	if !reflect.DeepEqual(anomalies, want) {
		t.Errorf("anomalies = %+v, want %+v", anomalies, want)
	}
}

func TestLayered_DiamondPositions(t *testing.T) {
	ts, es := diamond()
	res := NewEngine(DefaultConfig(), ModeLayered).Layout(ts, es)

	want := map[string]Position{
		"A": {X: 400, Y: 100},
		"B": {X: 200, Y: 300},
		"C": {X: 600, Y: 300},
		"D": {X: 400, Y: 500},
	}
	if !reflect.DeepEqual(res.Positions, want) {
		t.Errorf("positions = %v, want %v", res.Positions, want)
	}
}

func TestLayered_CustomConfig(t *testing.T) {
	ts := topics("a", "b", "c")
	cfg := Config{HorizontalSpacing: 100, VerticalSpacing: 50, OriginX: 0, OriginY: 0}
	res := Layered(cfg, ts, nil)

	for i, id := range []string{"a", "b", "c"} {
		want := Position{X: float64(i)*100 - 100, Y: 0}
		if res.Positions[id] != want {
			t.Errorf("position(%s) = %v, want %v", id, res.Positions[id], want)
		}
	}
}

// randomDAG builds n topics where each topic may depend on earlier ones.
func randomDAG(rng *rand.Rand, n int) ([]roadmap.Topic, []roadmap.Edge) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	ts := topics(ids...)
	var es []roadmap.Edge
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			if rng.Intn(4) == 0 {
				es = append(es, edge(ids[i], ids[j]))
			}
		}
	}
	return ts, es
}

func TestLayered_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultConfig()

	for run := 0; run < 50; run++ {
		ts, es := randomDAG(rng, 2+rng.Intn(20))
		res := Layered(cfg, ts, es)

		// Every edge points strictly down a level.
		for _, e := range es {
			if res.Levels[e.TopicID] <= res.Levels[e.PrerequisiteID] {
				t.Fatalf("run %d: level(%s)=%d not above level(%s)=%d", run,
					e.TopicID, res.Levels[e.TopicID], e.PrerequisiteID, res.Levels[e.PrerequisiteID])
			}
		}

		// Nodes sharing a level are at least one spacing apart.
		for i := range ts {
			for j := i + 1; j < len(ts); j++ {
				a, b := ts[i].ID, ts[j].ID
				if res.Levels[a] != res.Levels[b] {
					continue
				}
				if dx := math.Abs(res.Positions[a].X - res.Positions[b].X); dx < cfg.HorizontalSpacing {
					t.Fatalf("run %d: %s and %s overlap (dx=%v)", run, a, b, dx)
				}
			}
		}

		if len(res.Anomalies) != 0 {
			t.Fatalf("run %d: unexpected anomalies %v", run, res.Anomalies)
		}
	}
}

func TestSnake(t *testing.T) {
	// Shuffle input order; snake follows creation time.
	ts := topics("t0", "t1", "t2", "t3", "t4")
	shuffled := []roadmap.Topic{ts[3], ts[0], ts[4], ts[2], ts[1]}

	res := NewEngine(DefaultConfig(), ModeSnake).Layout(shuffled, []roadmap.Edge{edge("t0", "t4")})

	want := map[string]Position{
		"t0": {X: 0, Y: 100},
		"t1": {X: 400, Y: 100},
		"t2": {X: 800, Y: 100},
		"t3": {X: 800, Y: 300},
		"t4": {X: 400, Y: 300},
	}
	if !reflect.DeepEqual(res.Positions, want) {
		t.Errorf("positions = %v, want %v", res.Positions, want)
	}
	if res.Levels["t4"] != 1 || res.Levels["t0"] != 0 {
		t.Errorf("levels = %v", res.Levels)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(Config{OriginX: 10}, "")
	cfg := e.Config()
	if cfg.HorizontalSpacing != 400 || cfg.VerticalSpacing != 200 || cfg.Columns != 3 {
		t.Errorf("Config() = %+v, want default spacing and columns", cfg)
	}
	if cfg.OriginX != 10 {
		t.Errorf("OriginX = %v, want 10", cfg.OriginX)
	}
	if e.Mode() != ModeLayered {
		t.Errorf("Mode() = %q, want layered", e.Mode())
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeLayered, "layered": ModeLayered, "snake": ModeSnake} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("radial"); err == nil {
		t.Error("ParseMode(radial) expected error")
	}
}

func TestResult_JSONRoundTrip(t *testing.T) {
	ts, es := diamond()
	es = append(es, edge("D", "ghost"))
	res := NewEngine(DefaultConfig(), ModeLayered).Layout(ts, es)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var got Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, res) {
		t.Errorf("round trip = %+v, want %+v", got, res)
	}
}

func TestKey_CycleEdgeOrder(t *testing.T) {
	// A needs B and C, which need each other. Which of B and C is entered
	// first decides the reported back-edge.
	ts := topics("A", "B", "C")
	forward := []roadmap.Edge{edge("A", "B"), edge("A", "C"), edge("B", "C"), edge("C", "B")}
	backward := []roadmap.Edge{edge("A", "C"), edge("A", "B"), edge("B", "C"), edge("C", "B")}
	e := NewEngine(DefaultConfig(), ModeLayered)

	a, b := e.Layout(ts, forward), e.Layout(ts, backward)
	if reflect.DeepEqual(a.Anomalies, b.Anomalies) {
		t.Fatalf("edge order did not change the reported cycle: %+v", a.Anomalies)
	}
	if e.Key(ts, forward) == e.Key(ts, backward) {
		t.Error("Key() equal for layouts reporting different anomalies")
	}
}

func TestKey(t *testing.T) {
	ts, es := diamond()
	e := NewEngine(DefaultConfig(), ModeLayered)

	k := e.Key(ts, es)
	if len(k) != 64 {
		t.Fatalf("Key() length = %d, want 64 hex chars", len(k))
	}

	if got := e.Key(ts, es); got != k {
		t.Error("Key() not stable for identical input")
	}
	if got := e.Key(ts, append(append([]roadmap.Edge{}, es...), edge("x", "y"))); got != k {
		t.Error("Key() changed for an edge outside the roadmap")
	}
	if got := e.Key(ts, es[:3]); got == k {
		t.Error("Key() unchanged after removing an edge")
	}
	if got := NewEngine(DefaultConfig(), ModeSnake).Key(ts, es); got == k {
		t.Error("Key() unchanged across modes")
	}
	cfg := DefaultConfig()
	cfg.HorizontalSpacing = 500
	if got := NewEngine(cfg, ModeLayered).Key(ts, es); got == k {
		t.Error("Key() unchanged across spacing")
	}
}
