package dto

import (
	"time"

	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
)

// CourseFilter narrows course listings from query parameters.
type CourseFilter struct {
	Status     *string `validate:"omitempty,oneof=draft published archived"`
	ClassLevel *string `validate:"omitempty,max=32"`
}

// CourseCreateRequest describes the payload for creating a new course.
type CourseCreateRequest struct {
	Title          string  `json:"title" validate:"required,min=3,max=255"`
	Description    string  `json:"description" validate:"required,min=10"`
	InstructorID   uint    `json:"instructor_id" validate:"required"`
	Price          float64 `json:"price" validate:"gte=0"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	ClassLevel     string  `json:"class_level" validate:"omitempty,max=32"`
	Subject        string  `json:"subject" validate:"omitempty,max=64"`
	StudentLimit   int     `json:"student_limit" validate:"omitempty,gt=0"`
	HasCertificate *bool   `json:"has_certificate"`
}

// CourseUpdateRequest describes a partial course update.
type CourseUpdateRequest struct {
	Title        *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description  *string  `json:"description" validate:"omitempty,min=10"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	StudentLimit *int     `json:"student_limit" validate:"omitempty,gt=0"`
	Status       *string  `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// CurriculumUpdateRequest replaces a course's full curriculum tree and,
// optionally, its progress weight override.
type CurriculumUpdateRequest struct {
	Curriculum []SubjectModuleRequest `json:"curriculum" validate:"required,dive"`
	Weights    *WeightConfigRequest   `json:"progress_weights"`
}

// SubjectModuleRequest is one subject entry of a curriculum replace.
type SubjectModuleRequest struct {
	Subject  string           `json:"subject" validate:"required,max=64"`
	Chapters []ChapterRequest `json:"chapters" validate:"dive"`
}

// ChapterRequest is one chapter entry of a curriculum replace.
type ChapterRequest struct {
	Title       string               `json:"title" validate:"required,max=255"`
	Description string               `json:"description"`
	Contents    []ContentItemRequest `json:"contents" validate:"dive"`
}

// ContentItemRequest is one content entry of a curriculum replace.
type ContentItemRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Type     string `json:"type" validate:"required,oneof=video live note test assignment"`
	Title    string `json:"title" validate:"required,max=255"`
	URL      string `json:"url" validate:"omitempty,url"`
	Duration string `json:"duration" validate:"omitempty,max=32"`
	IsFree   bool   `json:"is_free"`
}

// WeightConfigRequest overrides the per-type progress weights for a course.
type WeightConfigRequest struct {
	Video      float64 `json:"video" validate:"gte=0"`
	Note       float64 `json:"note" validate:"gte=0"`
	Test       float64 `json:"test" validate:"gte=0"`
	Assignment float64 `json:"assignment" validate:"gte=0"`
}

// CourseResponse is the serialized course representation.
type CourseResponse struct {
	ID             uint                  `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	InstructorID   uint                  `json:"instructor_id"`
	Thumbnail      string                `json:"thumbnail"`
	Price          float64               `json:"price"`
	Currency       string                `json:"currency"`
	ClassLevel     string                `json:"class_level"`
	Subject        string                `json:"subject"`
	StudentLimit   int                   `json:"student_limit"`
	HasCertificate bool                  `json:"has_certificate"`
	Status         string                `json:"status"`
	Curriculum     progress.Curriculum   `json:"curriculum"`
	Weights        progress.WeightConfig `json:"progress_weights"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// NewCourseResponse converts a model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	curriculum := model.Curriculum.Data()
	if curriculum == nil {
		curriculum = progress.Curriculum{}
	}

	return CourseResponse{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		InstructorID:   model.InstructorID,
		Thumbnail:      model.Thumbnail,
		Price:          model.Price,
		Currency:       model.Currency,
		ClassLevel:     model.ClassLevel,
		Subject:        model.Subject,
		StudentLimit:   model.StudentLimit,
		HasCertificate: model.HasCertificate,
		Status:         model.Status,
		Curriculum:     curriculum,
		Weights:        model.ProgressWeights(),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewCourseResponseSlice converts a slice of models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, NewCourseResponse(course))
	}

	return responses
}

// ToCurriculum materialises the request tree into the aggregation types.
func (r CurriculumUpdateRequest) ToCurriculum() progress.Curriculum {
	curriculum := make(progress.Curriculum, 0, len(r.Curriculum))
	for _, module := range r.Curriculum {
		chapters := make([]progress.Chapter, 0, len(module.Chapters))
		for _, chapter := range module.Chapters {
			contents := make([]progress.ContentItem, 0, len(chapter.Contents))
			for _, content := range chapter.Contents {
				contents = append(contents, progress.ContentItem{
					ID:       content.ID,
					Type:     progress.ContentType(content.Type),
					Title:    content.Title,
					URL:      content.URL,
					Duration: content.Duration,
					IsFree:   content.IsFree,
				})
			}
			chapters = append(chapters, progress.Chapter{
				Title:       chapter.Title,
				Description: chapter.Description,
				Contents:    contents,
			})
		}
		curriculum = append(curriculum, progress.SubjectModule{
			Subject:  module.Subject,
			Chapters: chapters,
		})
	}

	return curriculum
}
