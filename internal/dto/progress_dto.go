package dto

import (
	"time"

	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
)

// CompletionRequest is the payload marking one content item complete. The
// content type is validated as a closed enum here, at the boundary; the
// aggregator itself stays permissive about types it does not recognise.
type CompletionRequest struct {
	CourseID  uint     `json:"course_id" validate:"required"`
	ContentID string   `json:"content_id" validate:"required"`
	Type      string   `json:"type" validate:"required,oneof=video live note test assignment"`
	Score     *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
}

// ProgressResponse is the serialized progress record. The camelCase field
// names mirror the stored document and are rendered directly by the web
// client, so they are part of the wire contract.
type ProgressResponse struct {
	CourseID          uint                       `json:"courseId"`
	CompletedContents []progress.Completion      `json:"completedContents"`
	ChapterProgress   []progress.ChapterProgress `json:"chapterProgress"`
	SubjectProgress   []progress.SubjectProgress `json:"subjectProgress"`
	OverallProgress   int                        `json:"overallProgress"`
	LastActiveAt      time.Time                  `json:"lastActiveAt"`
}

// NewProgressResponse converts a persisted record into a DTO.
func NewProgressResponse(record models.CourseProgress) ProgressResponse {
	return ProgressResponse{
		CourseID:          record.CourseID,
		CompletedContents: emptyIfNil(record.CompletedContents.Data()),
		ChapterProgress:   emptyIfNil(record.ChapterProgress.Data()),
		SubjectProgress:   emptyIfNil(record.SubjectProgress.Data()),
		OverallProgress:   record.OverallProgress,
		LastActiveAt:      record.LastActiveAt,
	}
}

// EmptyProgressResponse is returned when no record exists yet for the pair, so
// clients always receive the full shape instead of a 404.
func EmptyProgressResponse(courseID uint) ProgressResponse {
	return ProgressResponse{
		CourseID:          courseID,
		CompletedContents: []progress.Completion{},
		ChapterProgress:   []progress.ChapterProgress{},
		SubjectProgress:   []progress.SubjectProgress{},
	}
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
