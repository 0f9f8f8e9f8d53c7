package roadmap

// Prerequisites resolves edges against a roadmap's topic set and returns,
// for each topic id, its distinct prerequisite ids in edge order. Edges whose
// endpoints are not both in topics (dangling or cross-roadmap references) and
// self-references are returned separately as dropped.
func Prerequisites(topics []Topic, edges []Edge) (prereqs map[string][]string, dropped []Edge) {
	known := make(map[string]bool, len(topics))
	for _, t := range topics {
		known[t.ID] = true
	}

	prereqs = make(map[string][]string, len(topics))
	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		if !known[e.TopicID] || !known[e.PrerequisiteID] || e.TopicID == e.PrerequisiteID {
			dropped = append(dropped, e)
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		prereqs[e.TopicID] = append(prereqs[e.TopicID], e.PrerequisiteID)
	}
	return prereqs, dropped
}
