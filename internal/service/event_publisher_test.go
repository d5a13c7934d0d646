package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
)

func TestEventPublisherPersistsNotificationAndFansOut(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	sub := redisClient.Subscribe(context.Background(), "pathshala:progress")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	publisher := NewEventPublisher(repository.NewNotificationRepository(db), redisClient, "pathshala", nil, zerolog.Nop())

	event := ProgressEvent{
		Kind:         models.NotificationTypeChapterCompleted,
		StudentID:    301,
		CourseID:     11,
		Subject:      "Physics",
		ChapterTitle: "Motion",
		Overall:      40,
	}
	require.NoError(t, publisher.PublishProgress(context.Background(), event))

	message, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var received ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(message.Payload), &received))
	require.Equal(t, models.NotificationTypeChapterCompleted, received.Kind)
	require.Equal(t, uint(301), received.StudentID)
	require.NotEmpty(t, received.Source, "events must carry the publishing node id")
	require.False(t, received.SentAt.IsZero())

	var notifications []models.Notification
	require.NoError(t, db.Where("student_id = ?", 301).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationTypeChapterCompleted, notifications[0].Type)
	require.Contains(t, notifications[0].Message, "Motion")
	require.False(t, notifications[0].Read)
}

func TestEventPublisherCourseCompletedMessage(t *testing.T) {
	db := openTestDB(t)
	redisClient := openTestRedis(t)

	publisher := NewEventPublisher(repository.NewNotificationRepository(db), redisClient, "pathshala", nil, zerolog.Nop())

	require.NoError(t, publisher.PublishProgress(context.Background(), ProgressEvent{
		Kind:      models.NotificationTypeCourseCompleted,
		StudentID: 302,
		CourseID:  11,
		Overall:   100,
	}))

	var notifications []models.Notification
	require.NoError(t, db.Where("student_id = ?", 302).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Contains(t, notifications[0].Message, "completed the course")
}
