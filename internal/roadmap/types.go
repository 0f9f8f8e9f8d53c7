// Package roadmap holds learning content: roadmaps, their topics, the
// prerequisite edges between topics, and the quizzes that gate completion.
package roadmap

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a roadmap or topic does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuiz is returned when a quiz payload fails validation.
	ErrInvalidQuiz = errors.New("invalid quiz")
)

// Roadmap is a named collection of topics forming one subject track.
type Roadmap struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Icon        string    `json:"icon,omitempty" yaml:"icon"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Topic is a single learning unit with an article and an optional quiz.
type Topic struct {
	ID               string    `json:"id"`
	RoadmapID        string    `json:"roadmap_id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"short_description,omitempty"`
	ArticleContent   string    `json:"article_content,omitempty"`
	Quiz             *Quiz     `json:"quiz,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Edge states that TopicID requires PrerequisiteID to be completed first.
type Edge struct {
	TopicID        string `json:"concept_id"`
	PrerequisiteID string `json:"prerequisite_id"`
}

// Quiz is an ordered list of multiple-choice questions.
type Quiz struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question is one multiple-choice question. CorrectAnswer is a zero-based
// index into Options.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correct_answer"`
	Explanation   string   `json:"explanation" yaml:"explanation"`
}

// TopicIDs returns the ids of topics in their given order.
func TopicIDs(topics []Topic) []string {
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	return ids
}
