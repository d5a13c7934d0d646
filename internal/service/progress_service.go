package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pathshala-labs/pathshala-api/internal/dto"
	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/observability"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
)

// ErrCourseNotFound indicates the referenced course does not exist.
var ErrCourseNotFound = errors.New("course not found")

// ProgressService owns the recompute lifecycle of progress records. It is the
// only writer of the derived summary columns.
type ProgressService interface {
	RecordCompletion(ctx context.Context, studentID uint, payload dto.CompletionRequest) (dto.ProgressResponse, error)
	GetProgress(ctx context.Context, studentID, courseID uint) (dto.ProgressResponse, error)
}

type progressService struct {
	courses   repository.CourseRepository
	records   repository.ProgressRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	locks     keyedMutex
}

// NewProgressService constructs a ProgressService instance.
func NewProgressService(courses repository.CourseRepository, records repository.ProgressRepository, cache *redis.Client, cacheTTL time.Duration, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) ProgressService {
	return &progressService{
		courses:   courses,
		records:   records,
		cache:     cache,
		cacheTTL:  cacheTTL,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "progress_service").Logger(),
		tracer:    otel.Tracer("github.com/pathshala-labs/pathshala-api/internal/service/progress"),
		now:       time.Now,
	}
}

func (s *progressService) RecordCompletion(ctx context.Context, studentID uint, payload dto.CompletionRequest) (dto.ProgressResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProgressResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "progress.record_completion", trace.WithAttributes(
		attribute.Int("course_id", int(payload.CourseID)),
		attribute.String("content_id", payload.ContentID),
		attribute.String("content_type", payload.Type),
	))
	defer span.End()

	// One in-flight recompute per (student, course): the read-modify-write of
	// the completion set must not interleave with itself.
	key := progressKey(studentID, payload.CourseID)
	s.locks.lock(key)
	defer s.locks.unlock(key)

	course, err := s.courses.GetByID(spanCtx, payload.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrCourseNotFound
		}
		span.RecordError(err)
		return dto.ProgressResponse{}, err
	}

	record, err := s.records.GetByStudentAndCourse(spanCtx, studentID, payload.CourseID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			return dto.ProgressResponse{}, err
		}
		record = models.CourseProgress{StudentID: studentID, CourseID: payload.CourseID}
	}

	now := s.now().UTC()
	completions, _ := progress.MarkCompleted(
		record.CompletedContents.Data(),
		payload.ContentID,
		progress.ContentType(payload.Type),
		payload.Score,
		now,
	)

	previous := record.ChapterProgress.Data()
	previousOverall := record.OverallProgress

	summary := progress.Recompute(course.Curriculum.Data(), course.ProgressWeights(), completions)

	record.CompletedContents = datatypes.NewJSONType(completions)
	record.ChapterProgress = datatypes.NewJSONType(summary.ChapterProgress)
	record.SubjectProgress = datatypes.NewJSONType(summary.SubjectProgress)
	record.OverallProgress = summary.Overall
	record.LastActiveAt = now

	if err := s.records.Save(spanCtx, &record); err != nil {
		span.RecordError(err)
		return dto.ProgressResponse{}, err
	}

	s.invalidateCache(spanCtx, studentID, payload.CourseID)
	s.publishMilestones(spanCtx, studentID, payload.CourseID, previous, previousOverall, summary)

	observability.ProgressUpdates().WithLabelValues(payload.Type).Inc()
	s.logger.Info().
		Uint("student_id", studentID).
		Uint("course_id", payload.CourseID).
		Str("content_id", payload.ContentID).
		Int("overall", summary.Overall).
		Msg("completion recorded")

	return dto.NewProgressResponse(record), nil
}

func (s *progressService) GetProgress(ctx context.Context, studentID, courseID uint) (dto.ProgressResponse, error) {
	cacheKey := progressCacheKey(studentID, courseID)

	if s.cache != nil {
		switch cached, err := s.cache.Get(ctx, cacheKey).Result(); {
		case err == nil:
			var response dto.ProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.ProgressCache().WithLabelValues("hit").Inc()
				return response, nil
			}
			// Stale payload shape, treat as a miss and recompute below.
			observability.ProgressCache().WithLabelValues("miss").Inc()
		case err == redis.Nil:
			observability.ProgressCache().WithLabelValues("miss").Inc()
		default:
			observability.ProgressCache().WithLabelValues("error").Inc()
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	var response dto.ProgressResponse

	record, err := s.records.GetByStudentAndCourse(ctx, studentID, courseID)
	switch {
	case err == nil:
		response = dto.NewProgressResponse(record)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No record yet: report the empty shape rather than an error. The
		// empty shape is cached too so idle students do not poll the
		// database; RecordCompletion invalidates the key once a record
		// appears.
		response = dto.EmptyProgressResponse(courseID)
	default:
		return dto.ProgressResponse{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

func (s *progressService) invalidateCache(ctx context.Context, studentID, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, progressCacheKey(studentID, courseID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate progress cache")
	}
}

// publishMilestones emits events for chapters that transitioned to completed
// and for the course reaching 100%. Publish failures are logged, never
// surfaced: the record is already saved and the summary is authoritative.
func (s *progressService) publishMilestones(ctx context.Context, studentID, courseID uint, previous []progress.ChapterProgress, previousOverall int, summary progress.Summary) {
	if s.events == nil {
		return
	}

	wasCompleted := make(map[string]bool, len(previous))
	for _, chapter := range previous {
		wasCompleted[chapter.Subject+"\x00"+chapter.ChapterTitle] = chapter.Status == progress.StatusCompleted
	}

	for _, chapter := range summary.ChapterProgress {
		if chapter.Status != progress.StatusCompleted {
			continue
		}
		if wasCompleted[chapter.Subject+"\x00"+chapter.ChapterTitle] {
			continue
		}
		event := ProgressEvent{
			Kind:         models.NotificationTypeChapterCompleted,
			StudentID:    studentID,
			CourseID:     courseID,
			Subject:      chapter.Subject,
			ChapterTitle: chapter.ChapterTitle,
			Overall:      summary.Overall,
		}
		if err := s.events.PublishProgress(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("chapter", chapter.ChapterTitle).Msg("failed to publish chapter milestone")
		}
	}

	if summary.Overall == 100 && previousOverall < 100 {
		event := ProgressEvent{
			Kind:      models.NotificationTypeCourseCompleted,
			StudentID: studentID,
			CourseID:  courseID,
			Overall:   summary.Overall,
		}
		if err := s.events.PublishProgress(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish course milestone")
		}
	}
}

func progressKey(studentID, courseID uint) string {
	return fmt.Sprintf("%d:%d", studentID, courseID)
}

func progressCacheKey(studentID, courseID uint) string {
	return fmt.Sprintf("progress:student:%d:course:%d", studentID, courseID)
}

// keyedMutex serialises work per string key with no entry leak: the entry is
// dropped once the last holder releases it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedMutexEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	entry := k.entries[key]
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}
