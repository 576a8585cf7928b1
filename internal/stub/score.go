package stub

import (
	"strings"

	"quiz-attempt/internal/domain"
)

// scoreResponses awards a question's points when the response equals a correct option's text.
// Unknown questions and empty responses score nothing.
func scoreResponses(quiz domain.Quiz, responses []domain.Response) int {
	byID := make(map[string]string, len(responses))
	for _, r := range responses {
		byID[r.QuestionID] = r.Response
	}

	score := 0
	for _, q := range quiz.Questions {
		response, ok := byID[q.ID]
		if !ok || strings.TrimSpace(response) == "" {
			continue
		}
		if correct, points := scoreQuestion(q, response); correct {
			score += points
		}
	}
	return score
}

func scoreQuestion(q domain.QuizQuestion, response string) (bool, int) {
	points := q.Points
	if points == 0 {
		points = 1
	}
	for _, opt := range q.Options {
		if opt.Correct && opt.Text == response {
			return true, points
		}
	}
	return false, 0
}

func totalMarks(quiz domain.Quiz) int {
	if quiz.TotalMarks > 0 {
		return quiz.TotalMarks
	}
	total := 0
	for _, q := range quiz.Questions {
		if q.Points == 0 {
			total++
			continue
		}
		total += q.Points
	}
	return total
}
