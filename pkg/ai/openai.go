package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	quizDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pathshala",
		Subsystem: "ai",
		Name:      "quiz_generation_duration_seconds",
		Help:      "Duration of AI quiz generation requests",
	}, []string{"model"})

	quizFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pathshala",
		Subsystem: "ai",
		Name:      "quiz_generation_failures_total",
		Help:      "Number of AI quiz generation failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI quiz generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/pathshala-labs/pathshala-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// GenerateQuiz sends the quiz request to OpenAI and parses the response.
func (g *OpenAIGenerator) GenerateQuiz(parent context.Context, input QuizInput) (Quiz, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate_quiz", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("quiz.subject", input.Subject),
		attribute.String("quiz.chapter", input.ChapterTitle),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: quizSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildQuizPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	quizDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		quizFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Quiz{}, fmt.Errorf("openai generate quiz: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		quizFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		return Quiz{}, err
	}

	var quiz Quiz
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &quiz); err != nil {
		quizFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		return Quiz{}, fmt.Errorf("failed to parse quiz payload: %w", err)
	}

	if err := validateQuiz(quiz); err != nil {
		quizFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		return Quiz{}, err
	}

	g.logger.Info().
		Str("subject", input.Subject).
		Str("chapter", input.ChapterTitle).
		Int("questions", len(quiz.Questions)).
		Msg("quiz generated")

	return quiz, nil
}

func validateQuiz(quiz Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("model returned an empty quiz")
	}

	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %d has an empty prompt", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d has fewer than two options", i)
		}
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return fmt.Errorf("question %d has an out-of-range answer index", i)
		}
	}

	return nil
}

func quizSystemPrompt() string {
	return strings.TrimSpace(`
You are a question setter for a school course platform. Produce multiple-choice
quizzes as strict JSON with this shape:
{"questions":[{"prompt":"...","options":["..."],"answer":0,"explanation":"..."}]}
"answer" is the zero-based index of the correct option. Keep questions at the
stated class level and scoped strictly to the given chapter topics.`)
}

func buildQuizPrompt(input QuizInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", input.Subject)
	fmt.Fprintf(&b, "Chapter: %s\n", input.ChapterTitle)
	if input.ClassLevel != "" {
		fmt.Fprintf(&b, "Class level: %s\n", input.ClassLevel)
	}
	if len(input.Topics) > 0 {
		fmt.Fprintf(&b, "Covered topics: %s\n", strings.Join(input.Topics, "; "))
	}
	count := input.QuestionCount
	if count <= 0 {
		count = 5
	}
	fmt.Fprintf(&b, "Generate %d questions with 4 options each.", count)

	return b.String()
}
