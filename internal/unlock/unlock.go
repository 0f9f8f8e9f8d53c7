// Package unlock decides, per topic, whether a learner may open it.
package unlock

import (
	"fmt"
	"sort"

	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

// Status is a topic's state for one learner.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusUnlocked  Status = "unlocked"
	StatusCompleted Status = "completed"
)

// Open reports whether a topic in this state may be viewed and attempted.
func (s Status) Open() bool {
	return s == StatusUnlocked || s == StatusCompleted
}

// Policy selects how prerequisites gate a topic.
type Policy string

const (
	// PolicyDAG unlocks a topic once each of its explicit prerequisites is completed.
	PolicyDAG Policy = "dag"
	// PolicyLinear orders topics by creation time and unlocks a topic only
	// when every earlier topic is completed. Edges are ignored.
	PolicyLinear Policy = "linear"
)

// ParsePolicy converts a configuration string to a Policy. Empty means PolicyDAG.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDAG:
		return PolicyDAG, nil
	case PolicyLinear:
		return PolicyLinear, nil
	}
	return "", fmt.Errorf("unknown unlock policy %q", s)
}

// Evaluate classifies topics under the policy.
func (p Policy) Evaluate(topics []roadmap.Topic, edges []roadmap.Edge, completed map[string]bool) map[string]Status {
	if p == PolicyLinear {
		return EvaluateLinear(topics, completed)
	}
	return Evaluate(topics, edges, completed)
}

// Evaluate classifies every topic as completed, unlocked or locked under the
// DAG policy. Edges that do not connect two topics of this roadmap are ignored.
// A topic that lists itself as a prerequisite is a one-node cycle and stays
// locked until completed.
func Evaluate(topics []roadmap.Topic, edges []roadmap.Edge, completed map[string]bool) map[string]Status {
	prereqs, dropped := roadmap.Prerequisites(topics, edges)

	selfLoop := make(map[string]bool)
	for _, e := range dropped {
		if e.TopicID == e.PrerequisiteID {
			selfLoop[e.TopicID] = true
		}
	}

	out := make(map[string]Status, len(topics))
	for _, t := range topics {
		switch {
		case completed[t.ID]:
			out[t.ID] = StatusCompleted
		case selfLoop[t.ID]:
			out[t.ID] = StatusLocked
		default:
			out[t.ID] = classify(t.ID, prereqs[t.ID], completed)
		}
	}
	return out
}

func classify(id string, prereqs []string, completed map[string]bool) Status {
	if completed[id] {
		return StatusCompleted
	}
	for _, p := range prereqs {
		if !completed[p] {
			return StatusLocked
		}
	}
	return StatusUnlocked
}

// EvaluateLinear classifies topics under the linear policy.
func EvaluateLinear(topics []roadmap.Topic, completed map[string]bool) map[string]Status {
	ordered := append([]roadmap.Topic{}, topics...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := make(map[string]Status, len(ordered))
	allBefore := true
	for _, t := range ordered {
		switch {
		case completed[t.ID]:
			out[t.ID] = StatusCompleted
		case allBefore:
			out[t.ID] = StatusUnlocked
		default:
			out[t.ID] = StatusLocked
		}
		allBefore = allBefore && completed[t.ID]
	}
	return out
}

// Counts tallies statuses.
func Counts(statuses map[string]Status) map[Status]int {
	out := map[Status]int{StatusLocked: 0, StatusUnlocked: 0, StatusCompleted: 0}
	for _, s := range statuses {
		out[s]++
	}
	return out
}
