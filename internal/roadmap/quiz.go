package roadmap

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultPassThreshold is the minimum score (out of 100) that completes a topic.
const DefaultPassThreshold = 80

// quizSchema describes the JSONB quiz payload stored alongside a topic.
const quizSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "question", "options", "correctAnswer"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "question": {"type": "string", "minLength": 1},
          "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "correctAnswer": {"type": "integer", "minimum": 0},
          "explanation": {"type": "string"}
        }
      }
    }
  }
}`

var quizSchemaLoader = gojsonschema.NewStringLoader(quizSchema)

// Grade scores answers (question id -> chosen option index) as a percentage
// of correctly answered questions, rounded to the nearest integer.
// Unanswered questions count as wrong. A quiz with no questions scores 0.
func (q *Quiz) Grade(answers map[string]int) int {
	if q == nil || len(q.Questions) == 0 {
		return 0
	}
	correct := 0
	for _, question := range q.Questions {
		if chosen, ok := answers[question.ID]; ok && chosen == question.CorrectAnswer {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(len(q.Questions)) * 100))
}

// Passed reports whether score meets threshold.
func Passed(score, threshold int) bool {
	return score >= threshold
}

// ParseQuiz decodes and validates a raw JSON quiz payload.
func ParseQuiz(raw []byte) (*Quiz, error) {
	if err := validateQuizJSON(gojsonschema.NewBytesLoader(raw)); err != nil {
		return nil, err
	}
	var q Quiz
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if err := q.checkAnswers(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Validate checks a quiz against the payload schema and verifies every
// correct-answer index falls within its options list.
func (q *Quiz) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: quiz is nil", ErrInvalidQuiz)
	}
	if err := validateQuizJSON(gojsonschema.NewGoLoader(q)); err != nil {
		return err
	}
	return q.checkAnswers()
}

func validateQuizJSON(doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(quizSchemaLoader, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuiz, strings.Join(msgs, "; "))
}

func (q *Quiz) checkAnswers() error {
	seen := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		if seen[question.ID] {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = true
		if question.CorrectAnswer < 0 || question.CorrectAnswer >= len(question.Options) {
			return fmt.Errorf("%w: question %q correct answer %d out of range [0,%d)",
				ErrInvalidQuiz, question.ID, question.CorrectAnswer, len(question.Options))
		}
	}
	return nil
}
