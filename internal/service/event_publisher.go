package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/observability"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
)

// ProgressEvent is the milestone payload fanned out when a chapter or course
// transitions to completed.
type ProgressEvent struct {
	Source       string    `json:"source"`
	Kind         string    `json:"kind"`
	StudentID    uint      `json:"student_id"`
	CourseID     uint      `json:"course_id"`
	Subject      string    `json:"subject,omitempty"`
	ChapterTitle string    `json:"chapter_title,omitempty"`
	Overall      int       `json:"overall"`
	SentAt       time.Time `json:"sent_at"`
}

// EventPublisher persists milestone notifications and fans the event out to
// the brokers for other nodes and services to consume.
type EventPublisher interface {
	PublishProgress(ctx context.Context, event ProgressEvent) error
}

type eventPublisher struct {
	notifications repository.NotificationRepository
	redis         *redis.Client
	redisChannel  string
	nats          *nats.Conn
	natsSubject   string
	logger        zerolog.Logger
	nodeID        string
}

// NewEventPublisher constructs a publisher. Both broker connections are
// optional; a nil client simply skips that leg.
func NewEventPublisher(notifications repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":progress"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".progress"
	}

	return &eventPublisher{
		notifications: notifications,
		redis:         redisClient,
		redisChannel:  channel,
		nats:          natsConn,
		natsSubject:   subject,
		logger:        logger.With().Str("component", "event_publisher").Logger(),
		nodeID:        uuid.NewString(),
	}
}

func (p *eventPublisher) PublishProgress(ctx context.Context, event ProgressEvent) error {
	event.Source = p.nodeID
	event.SentAt = time.Now().UTC()

	if p.notifications != nil {
		notification := models.Notification{
			StudentID: event.StudentID,
			Type:      event.Kind,
			Message:   milestoneMessage(event),
		}
		if err := p.notifications.Create(ctx, &notification); err != nil {
			p.logger.Warn().Err(err).Uint("student_id", event.StudentID).Msg("failed to persist milestone notification")
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	observability.ProgressEvents().WithLabelValues(event.Kind).Inc()

	return nil
}

func milestoneMessage(event ProgressEvent) string {
	switch event.Kind {
	case models.NotificationTypeCourseCompleted:
		return "Congratulations! You completed the course."
	case models.NotificationTypeChapterCompleted:
		return fmt.Sprintf("You completed %q in %s.", event.ChapterTitle, event.Subject)
	default:
		return "Progress updated."
	}
}
