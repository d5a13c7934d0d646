package dto

import "github.com/pathshala-labs/pathshala-api/pkg/ai"

// QuizGenerateRequest asks for an AI-generated quiz scoped to one chapter's
// test content item.
type QuizGenerateRequest struct {
	CourseID      uint   `json:"course_id" validate:"required"`
	ContentID     string `json:"content_id" validate:"required"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=20"`
}

// QuizResponse carries a generated quiz. The quiz is held server side until
// submitted; the correct answers are stripped from the questions sent out.
type QuizResponse struct {
	QuizID    string             `json:"quiz_id"`
	CourseID  uint               `json:"course_id"`
	ContentID string             `json:"content_id"`
	Questions []QuizQuestionView `json:"questions"`
}

// QuizQuestionView is a question as shown to the student, without the answer.
type QuizQuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// NewQuizQuestionViews strips answers and explanations from the generated set.
func NewQuizQuestionViews(questions []ai.QuizQuestion) []QuizQuestionView {
	views := make([]QuizQuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, QuizQuestionView{Prompt: q.Prompt, Options: q.Options})
	}

	return views
}

// QuizSubmitRequest submits a student's answers for a held quiz.
type QuizSubmitRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// QuizSubmitResponse reports the graded attempt and the refreshed progress
// summary produced by recording the test completion.
type QuizSubmitResponse struct {
	Score    float64          `json:"score"`
	Correct  int              `json:"correct"`
	Total    int              `json:"total"`
	Progress ProgressResponse `json:"progress"`
}
