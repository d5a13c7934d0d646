package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pathshala-labs/pathshala-api/internal/dto"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
	"github.com/pathshala-labs/pathshala-api/pkg/ai"
)

const quizTTL = 30 * time.Minute

var (
	// ErrQuizNotFound indicates the quiz expired or never existed.
	ErrQuizNotFound = errors.New("quiz not found or expired")
	// ErrContentNotFound indicates the test content item is not in the curriculum.
	ErrContentNotFound = errors.New("content item not found in curriculum")
	// ErrAnswerCountMismatch indicates the submission does not cover the quiz.
	ErrAnswerCountMismatch = errors.New("answer count does not match question count")
)

// QuizService generates chapter quizzes via the AI provider and grades
// submitted attempts, recording each attempt as a test completion.
type QuizService interface {
	Generate(ctx context.Context, payload dto.QuizGenerateRequest) (dto.QuizResponse, error)
	Submit(ctx context.Context, studentID uint, quizID string, payload dto.QuizSubmitRequest) (dto.QuizSubmitResponse, error)
}

type quizService struct {
	courses   repository.CourseRepository
	progress  ProgressService
	generator ai.Generator
	cache     *redis.Client
	validator *validator.Validate
	logger    zerolog.Logger
}

// heldQuiz is the server-side quiz state kept in Redis between generate and
// submit, including the answers stripped from the client payload.
type heldQuiz struct {
	CourseID  uint              `json:"course_id"`
	ContentID string            `json:"content_id"`
	Questions []ai.QuizQuestion `json:"questions"`
}

// NewQuizService constructs a QuizService instance.
func NewQuizService(courses repository.CourseRepository, progressService ProgressService, generator ai.Generator, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger) QuizService {
	return &quizService{
		courses:   courses,
		progress:  progressService,
		generator: generator,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "quiz_service").Logger(),
	}
}

func (s *quizService) Generate(ctx context.Context, payload dto.QuizGenerateRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, payload.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizResponse{}, ErrCourseNotFound
		}
		return dto.QuizResponse{}, err
	}

	subject, chapter, found := findChapterByContent(course.Curriculum.Data(), payload.ContentID)
	if !found {
		return dto.QuizResponse{}, ErrContentNotFound
	}

	topics := make([]string, 0, len(chapter.Contents))
	for _, content := range chapter.Contents {
		if content.Title != "" {
			topics = append(topics, content.Title)
		}
	}

	quiz, err := s.generator.GenerateQuiz(ctx, ai.QuizInput{
		Subject:       subject,
		ChapterTitle:  chapter.Title,
		ClassLevel:    course.ClassLevel,
		Topics:        topics,
		QuestionCount: payload.QuestionCount,
	})
	if err != nil {
		return dto.QuizResponse{}, fmt.Errorf("failed to generate quiz: %w", err)
	}

	quizID := uuid.NewString()
	held := heldQuiz{
		CourseID:  payload.CourseID,
		ContentID: payload.ContentID,
		Questions: quiz.Questions,
	}
	body, err := json.Marshal(held)
	if err != nil {
		return dto.QuizResponse{}, err
	}
	if err := s.cache.Set(ctx, quizCacheKey(quizID), body, quizTTL).Err(); err != nil {
		return dto.QuizResponse{}, fmt.Errorf("failed to hold quiz: %w", err)
	}

	s.logger.Info().
		Str("quiz_id", quizID).
		Uint("course_id", payload.CourseID).
		Str("chapter", chapter.Title).
		Msg("quiz generated and held")

	return dto.QuizResponse{
		QuizID:    quizID,
		CourseID:  payload.CourseID,
		ContentID: payload.ContentID,
		Questions: dto.NewQuizQuestionViews(quiz.Questions),
	}, nil
}

func (s *quizService) Submit(ctx context.Context, studentID uint, quizID string, payload dto.QuizSubmitRequest) (dto.QuizSubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizSubmitResponse{}, err
	}

	body, err := s.cache.Get(ctx, quizCacheKey(quizID)).Result()
	if err != nil {
		if err == redis.Nil {
			return dto.QuizSubmitResponse{}, ErrQuizNotFound
		}
		return dto.QuizSubmitResponse{}, err
	}

	var held heldQuiz
	if err := json.Unmarshal([]byte(body), &held); err != nil {
		return dto.QuizSubmitResponse{}, fmt.Errorf("corrupt held quiz: %w", err)
	}

	if len(payload.Answers) != len(held.Questions) {
		return dto.QuizSubmitResponse{}, ErrAnswerCountMismatch
	}

	correct := 0
	for i, answer := range payload.Answers {
		if answer == held.Questions[i].Answer {
			correct++
		}
	}
	score := math.Round(float64(correct) / float64(len(held.Questions)) * 100)

	// Retakes flow through the same path: the existing completion keeps its
	// identity and only the score and timestamp move.
	progressResponse, err := s.progress.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  held.CourseID,
		ContentID: held.ContentID,
		Type:      string(progress.ContentTypeTest),
		Score:     &score,
	})
	if err != nil {
		return dto.QuizSubmitResponse{}, err
	}

	// A held quiz is single-use.
	if err := s.cache.Del(ctx, quizCacheKey(quizID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to drop held quiz")
	}

	return dto.QuizSubmitResponse{
		Score:    score,
		Correct:  correct,
		Total:    len(held.Questions),
		Progress: progressResponse,
	}, nil
}

func findChapterByContent(curriculum progress.Curriculum, contentID string) (string, progress.Chapter, bool) {
	for _, module := range curriculum {
		for _, chapter := range module.Chapters {
			for _, content := range chapter.Contents {
				if content.ID == contentID {
					return module.Subject, chapter, true
				}
			}
		}
	}

	return "", progress.Chapter{}, false
}

func quizCacheKey(quizID string) string {
	return "quiz:held:" + quizID
}
