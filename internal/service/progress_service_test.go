package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pathshala-labs/pathshala-api/internal/dto"
	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/observability"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
)

type recordingPublisher struct {
	events []ProgressEvent
}

func (r *recordingPublisher) PublishProgress(_ context.Context, event ProgressEvent) error {
	r.events = append(r.events, event)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Course{}, &models.Enrollment{}, &models.CourseProgress{}, &models.Notification{}))

	return db
}

func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	return redis.NewClient(&redis.Options{Addr: mini.Addr()})
}

func physicsCurriculum() progress.Curriculum {
	return progress.Curriculum{{
		Subject: "Physics",
		Chapters: []progress.Chapter{{
			Title: "Motion",
			Contents: []progress.ContentItem{
				{ID: "v1", Type: progress.ContentTypeVideo, Title: "Kinematics I"},
				{ID: "v2", Type: progress.ContentTypeVideo, Title: "Kinematics II"},
				{ID: "n1", Type: progress.ContentTypeNote, Title: "Formula Sheet"},
				{ID: "n2", Type: progress.ContentTypeNote, Title: "Solved Examples"},
			},
		}},
	}}
}

func createCourse(t *testing.T, db *gorm.DB, curriculum progress.Curriculum) models.Course {
	t.Helper()

	course := models.Course{
		Title:      "Physics Crash Course",
		Status:     models.CourseStatusPublished,
		Curriculum: datatypes.NewJSONType(curriculum),
	}
	require.NoError(t, db.Create(&course).Error)

	return course
}

func newProgressService(t *testing.T, db *gorm.DB, redisClient *redis.Client, events EventPublisher) ProgressService {
	t.Helper()

	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewProgressService(
		repository.NewCourseRepository(db),
		repository.NewProgressRepository(db),
		redisClient,
		time.Minute,
		events,
		validate,
		zerolog.Nop(),
	)
}

func TestProgressServiceRecordCompletionLifecycle(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)
	publisher := &recordingPublisher{}

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, redisClient, publisher)

	ctx := context.Background()
	studentID := uint(101)

	first, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)
	require.Equal(t, 30, first.OverallProgress)
	require.Len(t, first.CompletedContents, 1)
	require.Equal(t, progress.StatusInProgress, first.ChapterProgress[0].Status)
	require.False(t, first.LastActiveAt.IsZero())

	// Re-marking the same content must change nothing.
	repeat, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)
	require.Equal(t, 30, repeat.OverallProgress)
	require.Len(t, repeat.CompletedContents, 1)
	require.Empty(t, publisher.events)

	steps := []dto.CompletionRequest{
		{CourseID: course.ID, ContentID: "v2", Type: "video"},
		{CourseID: course.ID, ContentID: "n1", Type: "note"},
	}
	for _, step := range steps {
		_, err = svc.RecordCompletion(ctx, studentID, step)
		require.NoError(t, err)
	}

	final, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "n2",
		Type:      "note",
	})
	require.NoError(t, err)
	require.Equal(t, 100, final.OverallProgress)
	require.Equal(t, progress.StatusCompleted, final.ChapterProgress[0].Status)

	// Finishing the last item crosses both milestones at once.
	require.Len(t, publisher.events, 2)
	require.Equal(t, models.NotificationTypeChapterCompleted, publisher.events[0].Kind)
	require.Equal(t, "Motion", publisher.events[0].ChapterTitle)
	require.Equal(t, models.NotificationTypeCourseCompleted, publisher.events[1].Kind)

	var stored models.CourseProgress
	require.NoError(t, db.Where("student_id = ? AND course_id = ?", studentID, course.ID).First(&stored).Error)
	require.Equal(t, 100, stored.OverallProgress)
	require.Len(t, stored.CompletedContents.Data(), 4)
}

func TestProgressServiceRecordCompletionCourseNotFound(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	svc := newProgressService(t, db, redisClient, nil)

	_, err := svc.RecordCompletion(context.Background(), 102, dto.CompletionRequest{
		CourseID:  99999,
		ContentID: "v1",
		Type:      "video",
	})
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestProgressServiceRecordCompletionRejectsUnknownType(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, redisClient, nil)

	_, err := svc.RecordCompletion(context.Background(), 103, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "simulation",
	})
	require.Error(t, err)
}

func TestProgressServiceScoreRetakeKeepsOverall(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	curriculum := progress.Curriculum{{
		Subject: "Chemistry",
		Chapters: []progress.Chapter{{
			Title:    "Mole Concept",
			Contents: []progress.ContentItem{{ID: "t1", Type: progress.ContentTypeTest, Title: "Chapter Test"}},
		}},
	}}
	course := createCourse(t, db, curriculum)
	svc := newProgressService(t, db, redisClient, nil)

	ctx := context.Background()
	studentID := uint(104)
	firstScore := 40.0
	retakeScore := 85.0

	first, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "t1",
		Type:      "test",
		Score:     &firstScore,
	})
	require.NoError(t, err)
	require.Equal(t, 100, first.OverallProgress)
	require.Equal(t, firstScore, *first.CompletedContents[0].Score)

	retake, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "t1",
		Type:      "test",
		Score:     &retakeScore,
	})
	require.NoError(t, err)
	require.Equal(t, 100, retake.OverallProgress)
	require.Len(t, retake.CompletedContents, 1)
	require.Equal(t, retakeScore, *retake.CompletedContents[0].Score)
}

func TestProgressServiceGetProgressEmptyShape(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, redisClient, nil)

	response, err := svc.GetProgress(context.Background(), 105, course.ID)
	require.NoError(t, err)
	require.Equal(t, course.ID, response.CourseID)
	require.Equal(t, 0, response.OverallProgress)
	require.NotNil(t, response.CompletedContents)
	require.Empty(t, response.CompletedContents)
	require.NotNil(t, response.ChapterProgress)
	require.Empty(t, response.ChapterProgress)
}

func TestProgressServiceGetProgressCaching(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, redisClient, nil)

	ctx := context.Background()
	studentID := uint(106)

	_, err := svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)

	first, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 30, first.OverallProgress)

	// Bypass the service to change the row; the cached copy must win.
	require.NoError(t, db.Model(&models.CourseProgress{}).
		Where("student_id = ? AND course_id = ?", studentID, course.ID).
		Update("overall_progress", 55).Error)

	second, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Recording a completion invalidates the cache, so the next read is fresh.
	_, err = svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v2",
		Type:      "video",
	})
	require.NoError(t, err)

	third, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 60, third.OverallProgress)
}

func TestProgressServiceGetProgressCachesEmptyShape(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, redisClient, nil)

	ctx := context.Background()
	studentID := uint(109)

	first, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 0, first.OverallProgress)

	// The empty shape lands in the cache so idle students stop hitting the
	// database on every poll.
	key := fmt.Sprintf("progress:student:%d:course:%d", studentID, course.ID)
	require.NoError(t, redisClient.Get(ctx, key).Err())

	// Bypass the service to create a row; the cached empty shape must win
	// until a completion invalidates the key.
	require.NoError(t, db.Create(&models.CourseProgress{
		StudentID:       studentID,
		CourseID:        course.ID,
		OverallProgress: 30,
	}).Error)

	second, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)

	third, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 30, third.OverallProgress)
	require.Len(t, third.CompletedContents, 1)
}

func TestProgressServiceGetProgressCacheReadFailure(t *testing.T) {
	db := openTestDB(t)

	mini, err := miniredis.Run()
	require.NoError(t, err)
	deadClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	mini.Close()

	course := createCourse(t, db, physicsCurriculum())
	svc := newProgressService(t, db, deadClient, nil)

	ctx := context.Background()
	studentID := uint(110)

	_, err = svc.RecordCompletion(ctx, studentID, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)

	missBefore := testutil.ToFloat64(observability.ProgressCache().WithLabelValues("miss"))
	errorBefore := testutil.ToFloat64(observability.ProgressCache().WithLabelValues("error"))

	// A broken cache degrades to a database read without failing the call,
	// and is counted as an error rather than a miss.
	response, err := svc.GetProgress(ctx, studentID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 30, response.OverallProgress)

	require.Equal(t, missBefore, testutil.ToFloat64(observability.ProgressCache().WithLabelValues("miss")))
	require.Equal(t, errorBefore+1, testutil.ToFloat64(observability.ProgressCache().WithLabelValues("error")))
}

func TestProgressServiceGetProgressCacheHit(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	svc := newProgressService(t, db, redisClient, nil)

	ctx := context.Background()
	cached := dto.EmptyProgressResponse(42)
	cached.OverallProgress = 77

	payload, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, redisClient.Set(ctx, "progress:student:107:course:42", payload, time.Minute).Err())

	response, err := svc.GetProgress(ctx, 107, 42)
	require.NoError(t, err)
	require.Equal(t, cached, response)
}

func TestProgressServiceWeightOverride(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	course := models.Course{
		Title:      "Weighted Course",
		Status:     models.CourseStatusPublished,
		Curriculum: datatypes.NewJSONType(physicsCurriculum()),
		Weights:    datatypes.NewJSONType(progress.WeightConfig{Video: 80, Note: 20}),
	}
	require.NoError(t, db.Create(&course).Error)

	svc := newProgressService(t, db, redisClient, nil)

	response, err := svc.RecordCompletion(context.Background(), 108, dto.CompletionRequest{
		CourseID:  course.ID,
		ContentID: "v1",
		Type:      "video",
	})
	require.NoError(t, err)
	require.Equal(t, 40, response.OverallProgress)
}
