package roadmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RoadmapFile is the on-disk YAML form of one roadmap and its topics.
// Prerequisites refer to other topics in the same file by key.
type RoadmapFile struct {
	Title       string      `yaml:"title"`
	Description string      `yaml:"description,omitempty"`
	Icon        string      `yaml:"icon,omitempty"`
	Topics      []TopicFile `yaml:"topics"`

	path string
}

// TopicFile is one topic entry inside a RoadmapFile.
type TopicFile struct {
	Key              string   `yaml:"key"`
	Title            string   `yaml:"title"`
	ShortDescription string   `yaml:"short_description,omitempty"`
	Article          string   `yaml:"article,omitempty"`
	Prerequisites    []string `yaml:"prerequisites,omitempty"`
	Quiz             *Quiz    `yaml:"quiz,omitempty"`
}

// Loader reads roadmap content from a directory of YAML files.
type Loader struct {
	rootDir  string
	roadmaps []RoadmapFile
	mu       sync.RWMutex
}

// NewLoader creates a loader and parses every roadmap file under rootDir.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}
	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading roadmap content: %w", err)
	}
	slog.Info("roadmap content loaded", "dir", rootDir, "roadmaps", len(l.roadmaps))
	return l, nil
}

// Roadmaps returns the parsed roadmap files ordered by path.
func (l *Loader) Roadmaps() []RoadmapFile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]RoadmapFile{}, l.roadmaps...)
}

// ImportStats reports what Import wrote.
type ImportStats struct {
	Roadmaps int
	Topics   int
	Edges    int
	Skipped  int
}

// Import writes every loaded roadmap into store. Topics are given strictly
// increasing creation times in file order so that the stored order matches
// the authored order. Unknown prerequisite keys and invalid quizzes are
// skipped with a warning.
func (l *Loader) Import(ctx context.Context, store ContentStore) (ImportStats, error) {
	var stats ImportStats
	base := time.Now().UTC().Truncate(time.Second)

	for ri, rf := range l.Roadmaps() {
		roadmapAt := base.Add(time.Duration(ri) * time.Minute)
		roadmapID, err := store.CreateRoadmap(ctx, Roadmap{
			Title:       rf.Title,
			Description: rf.Description,
			Icon:        rf.Icon,
			CreatedAt:   roadmapAt,
		})
		if err != nil {
			return stats, fmt.Errorf("import %s: %w", rf.path, err)
		}
		stats.Roadmaps++

		ids := make(map[string]string, len(rf.Topics))
		for ti, tf := range rf.Topics {
			quiz := tf.Quiz
			if quiz != nil {
				if err := quiz.Validate(); err != nil {
					slog.Warn("dropping invalid quiz", "path", rf.path, "topic", tf.Key, "error", err)
					quiz = nil
					stats.Skipped++
				}
			}
			id, err := store.CreateTopic(ctx, Topic{
				RoadmapID:        roadmapID,
				Title:            tf.Title,
				ShortDescription: tf.ShortDescription,
				ArticleContent:   strings.TrimSpace(tf.Article),
				Quiz:             quiz,
				CreatedAt:        roadmapAt.Add(time.Duration(ti) * time.Millisecond),
			})
			if err != nil {
				return stats, fmt.Errorf("import %s topic %q: %w", rf.path, tf.Key, err)
			}
			ids[tf.Key] = id
			stats.Topics++
		}

		for _, tf := range rf.Topics {
			for _, pre := range tf.Prerequisites {
				preID, ok := ids[pre]
				if !ok {
					slog.Warn("skipping unknown prerequisite", "path", rf.path, "topic", tf.Key, "prerequisite", pre)
					stats.Skipped++
					continue
				}
				if err := store.AddEdge(ctx, Edge{TopicID: ids[tf.Key], PrerequisiteID: preID}); err != nil {
					return stats, fmt.Errorf("import %s edge %s->%s: %w", rf.path, pre, tf.Key, err)
				}
				stats.Edges++
			}
		}
	}

	slog.Info("roadmap content imported",
		"roadmaps", stats.Roadmaps,
		"topics", stats.Topics,
		"edges", stats.Edges,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

func (l *Loader) loadAll() error {
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadRoadmap(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(l.roadmaps, func(i, j int) bool { return l.roadmaps[i].path < l.roadmaps[j].path })
	return nil
}

func (l *Loader) loadRoadmap(path string) error {
	rf, err := ReadRoadmapFile(path)
	if errors.Is(err, errNotRoadmap) {
		return nil
	}
	if err != nil {
		slog.Warn("skipping roadmap file", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	l.roadmaps = append(l.roadmaps, rf)
	l.mu.Unlock()
	return nil
}

var errNotRoadmap = errors.New("not a roadmap file")

// ReadRoadmapFile parses and checks a single roadmap YAML file.
func ReadRoadmapFile(path string) (RoadmapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RoadmapFile{}, err
	}

	var rf RoadmapFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return RoadmapFile{}, fmt.Errorf("invalid roadmap YAML: %w", err)
	}
	if rf.Title == "" {
		return RoadmapFile{}, errNotRoadmap
	}
	if err := checkTopicKeys(rf.Topics); err != nil {
		return RoadmapFile{}, fmt.Errorf("bad topic keys: %w", err)
	}
	rf.path = path
	return rf, nil
}

// WriteRoadmapFile writes rf to path as YAML.
func WriteRoadmapFile(path string, rf RoadmapFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("marshal roadmap %q: %w", rf.Title, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func checkTopicKeys(topics []TopicFile) error {
	seen := make(map[string]bool, len(topics))
	for i, t := range topics {
		if t.Key == "" {
			return fmt.Errorf("topic %d has no key", i)
		}
		if t.Title == "" {
			return fmt.Errorf("topic %q has no title", t.Key)
		}
		if seen[t.Key] {
			return fmt.Errorf("duplicate topic key %q", t.Key)
		}
		seen[t.Key] = true
	}
	return nil
}
