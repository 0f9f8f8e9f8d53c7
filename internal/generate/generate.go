// Package generate fills roadmap content files with model-written articles
// and quizzes.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/LikhithSP/Knowledge-Tree/internal/ai"
	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

const (
	defaultArticleTokens = 800
	defaultQuizTokens    = 600
	temperature          = 0.7
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
)

// Generator writes articles and quizzes for topics through an ai.Provider.
type Generator struct {
	provider      ai.Provider
	model         string
	articleTokens int
	quizTokens    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel asks the provider for a specific model.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithMaxTokens caps the output length of article and quiz completions.
func WithMaxTokens(article, quiz int) Option {
	return func(g *Generator) {
		if article > 0 {
			g.articleTokens = article
		}
		if quiz > 0 {
			g.quizTokens = quiz
		}
	}
}

// New creates a Generator.
func New(provider ai.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:      provider,
		articleTokens: defaultArticleTokens,
		quizTokens:    defaultQuizTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats counts what Fill produced. Fallbacks counts quizzes replaced by the
// placeholder because the model's answer did not validate.
type Stats struct {
	Articles  int
	Quizzes   int
	Fallbacks int
}

// Add accumulates s2 into s.
func (s *Stats) Add(s2 Stats) {
	s.Articles += s2.Articles
	s.Quizzes += s2.Quizzes
	s.Fallbacks += s2.Fallbacks
}

// Article asks the model for an HTML article about topic.
func (g *Generator) Article(ctx context.Context, topic roadmap.TopicFile) (string, error) {
	resp, err := g.complete(ctx, ai.TaskArticle, articlePrompt(topic), g.articleTokens)
	if err != nil {
		return "", fmt.Errorf("article for %q: %w", topic.Title, err)
	}
	article := strings.TrimSpace(codeFence.ReplaceAllString(clean(resp.Content), ""))
	if article == "" {
		return "", fmt.Errorf("article for %q: empty response", topic.Title)
	}
	return article, nil
}

// Quiz asks the model for a multiple-choice quiz about topic. An answer that
// does not validate is replaced by a one-question placeholder, reported
// through the boolean result.
func (g *Generator) Quiz(ctx context.Context, topic roadmap.TopicFile) (*roadmap.Quiz, bool, error) {
	resp, err := g.complete(ctx, ai.TaskQuiz, quizPrompt(topic), g.quizTokens)
	if err != nil {
		return nil, false, fmt.Errorf("quiz for %q: %w", topic.Title, err)
	}
	quiz, err := roadmap.ParseQuiz([]byte(extractJSON(resp.Content)))
	if err != nil {
		slog.Warn("generated quiz rejected, using placeholder", "topic", topic.Key, "error", err)
		return FallbackQuiz(topic.Title), true, nil
	}
	return quiz, false, nil
}

// Fill generates the missing article and quiz of every topic in rf. With
// overwrite set it regenerates them all. On error rf keeps whatever was
// generated before the failure.
func (g *Generator) Fill(ctx context.Context, rf *roadmap.RoadmapFile, overwrite bool) (Stats, error) {
	var stats Stats
	for i := range rf.Topics {
		topic := &rf.Topics[i]

		if overwrite || strings.TrimSpace(topic.Article) == "" {
			article, err := g.Article(ctx, *topic)
			if err != nil {
				return stats, err
			}
			topic.Article = article
			stats.Articles++
		}

		if overwrite || topic.Quiz == nil {
			quiz, fallback, err := g.Quiz(ctx, *topic)
			if err != nil {
				return stats, err
			}
			topic.Quiz = quiz
			stats.Quizzes++
			if fallback {
				stats.Fallbacks++
			}
		}

		slog.Info("topic content generated", "roadmap", rf.Title, "topic", topic.Key)
	}
	return stats, nil
}

// FallbackQuiz is the placeholder used when a generated quiz is unusable.
func FallbackQuiz(title string) *roadmap.Quiz {
	return &roadmap.Quiz{Questions: []roadmap.Question{{
		ID:            "q1",
		Question:      fmt.Sprintf("What is the main purpose of %s?", title),
		Options:       []string{"Option A", "Option B", "Option C", "Option D"},
		CorrectAnswer: 0,
		Explanation:   "This is a placeholder explanation.",
	}}}
}

func (g *Generator) complete(ctx context.Context, task ai.TaskType, prompt string, maxTokens int) (ai.CompletionResponse, error) {
	return g.provider.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Task:        task,
	})
}

// clean drops reasoning blocks some models emit before their answer.
func clean(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// extractJSON returns the outermost {...} span of a model answer, or the
// cleaned answer when it has none.
func extractJSON(s string) string {
	s = clean(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
