package generate

import (
	"fmt"
	"strings"

	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

func articlePrompt(topic roadmap.TopicFile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a comprehensive educational article about %q.\n", topic.Title)
	if topic.ShortDescription != "" {
		fmt.Fprintf(&sb, "Description: %s\n", topic.ShortDescription)
	}
	sb.WriteString(`
Requirements:
- Write a clear, engaging article suitable for beginners to intermediate learners
- Include practical examples and real-world applications
- Use simple HTML formatting (h3, p, ul, li, strong, em, code tags only)
- Aim for 500-800 words
- Include step-by-step explanations when appropriate

Return only the HTML content, no additional text or markdown.`)
	return sb.String()
}

func quizPrompt(topic roadmap.TopicFile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a quiz with 4 multiple-choice questions about %q.\n", topic.Title)
	if topic.ShortDescription != "" {
		fmt.Fprintf(&sb, "Description: %s\n", topic.ShortDescription)
	}
	sb.WriteString(`
Requirements:
- Each question should test understanding of key concepts
- Provide 4 options for each question
- Include a detailed explanation for the correct answer
- Make questions practical and application-focused

Return the response in this exact JSON format:
{
  "questions": [
    {
      "id": "q1",
      "question": "Question text here",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": 0,
      "explanation": "Why this answer is correct"
    }
  ]
}`)
	return sb.String()
}
