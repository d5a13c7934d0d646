package ai

import "context"

// QuizInput describes the chapter scope a quiz should be generated from.
type QuizInput struct {
	Subject       string
	ChapterTitle  string
	ClassLevel    string
	Topics        []string
	QuestionCount int
}

// QuizQuestion is a single multiple-choice question. Answer is the index into
// Options of the correct choice.
type QuizQuestion struct {
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
}

// Quiz is the structured output returned by a generator.
type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

// Generator describes an AI model capable of producing chapter quizzes.
type Generator interface {
	GenerateQuiz(ctx context.Context, input QuizInput) (Quiz, error)
}
