package progress

import "math"

// minutesPerTopic is the study-time estimate used for the dashboard.
const minutesPerTopic = 10

// Summary is the dashboard overview for one learner.
type Summary struct {
	TopicsCompleted  int                `json:"topics_completed"`
	QuizzesCompleted int                `json:"quizzes_completed"`
	HoursCompleted   int                `json:"hours_completed"`
	TotalTopics      int                `json:"total_topics"`
	History          []CompletionRecord `json:"history"`
}

// Summarize builds a dashboard summary from a learner's records and the
// total number of topics on the platform.
func Summarize(records []CompletionRecord, totalTopics int) Summary {
	quizzes := 0
	for _, r := range records {
		if r.QuizScore != nil {
			quizzes++
		}
	}
	history := records
	if history == nil {
		history = []CompletionRecord{}
	}
	return Summary{
		TopicsCompleted:  len(records),
		QuizzesCompleted: quizzes,
		HoursCompleted:   int(math.Round(float64(len(records)*minutesPerTopic) / 60)),
		TotalTopics:      totalTopics,
		History:          history,
	}
}
