package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pathshala-labs/pathshala-api/internal/dto"
	"github.com/pathshala-labs/pathshala-api/internal/models"
	"github.com/pathshala-labs/pathshala-api/internal/progress"
	"github.com/pathshala-labs/pathshala-api/internal/repository"
)

var (
	// ErrStudentNotFound indicates the enrolling student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrAlreadyEnrolled indicates a duplicate enrollment attempt.
	ErrAlreadyEnrolled = errors.New("student already enrolled")
	// ErrCourseFull indicates the course reached its student limit.
	ErrCourseFull = errors.New("course is full")
	// ErrCourseNotPublished indicates enrollment into a non-published course.
	ErrCourseNotPublished = errors.New("course is not open for enrollment")
)

// FileUploader stores a course thumbnail and returns its public URL.
type FileUploader interface {
	UploadThumbnail(ctx context.Context, courseID uint, filename string, reader io.Reader) (string, error)
}

// CourseService orchestrates course management workflows.
type CourseService interface {
	List(ctx context.Context, filter dto.CourseFilter) ([]dto.CourseResponse, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	ReplaceCurriculum(ctx context.Context, id uint, payload dto.CurriculumUpdateRequest) (dto.CourseResponse, error)
	UploadThumbnail(ctx context.Context, id uint, file *multipart.FileHeader) (dto.CourseResponse, error)
	Enroll(ctx context.Context, courseID, studentID uint) error
}

type courseService struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	students    repository.StudentRepository
	validator   *validator.Validate
	uploader    FileUploader
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(courses repository.CourseRepository, enrollments repository.EnrollmentRepository, students repository.StudentRepository, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) CourseService {
	return &courseService{
		courses:     courses,
		enrollments: enrollments,
		students:    students,
		validator:   validate,
		uploader:    uploader,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, filter dto.CourseFilter) ([]dto.CourseResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	courses, err := s.courses.List(ctx, repository.CourseFilter{
		Status:     filter.Status,
		ClassLevel: filter.ClassLevel,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.getCourse(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:        strings.TrimSpace(payload.Title),
		Description:  s.sanitizer.Sanitize(payload.Description),
		InstructorID: payload.InstructorID,
		Price:        payload.Price,
		Currency:     payload.Currency,
		ClassLevel:   payload.ClassLevel,
		Subject:      payload.Subject,
		StudentLimit: payload.StudentLimit,
		Status:       models.CourseStatusDraft,
		Curriculum:   datatypes.NewJSONType(progress.Curriculum{}),
	}
	if course.Currency == "" {
		course.Currency = "INR"
	}
	if course.Subject == "" {
		course.Subject = "All"
	}
	if course.StudentLimit <= 0 {
		course.StudentLimit = 1000
	}
	course.HasCertificate = payload.HasCertificate == nil || *payload.HasCertificate

	if err := s.courses.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Msg("course created")

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Update(ctx context.Context, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.getCourse(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		course.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		course.Description = s.sanitizer.Sanitize(*payload.Description)
	}
	if payload.Price != nil {
		course.Price = *payload.Price
	}
	if payload.StudentLimit != nil {
		course.StudentLimit = *payload.StudentLimit
	}
	if payload.Status != nil {
		course.Status = strings.ToLower(*payload.Status)
	}

	if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Msg("course updated")

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) ReplaceCurriculum(ctx context.Context, id uint, payload dto.CurriculumUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	curriculum := payload.ToCurriculum()
	if err := validateContentIDs(curriculum); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.getCourse(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	course.Curriculum = datatypes.NewJSONType(curriculum)
	if payload.Weights != nil {
		course.Weights = datatypes.NewJSONType(progress.WeightConfig{
			Video:      payload.Weights.Video,
			Note:       payload.Weights.Note,
			Test:       payload.Weights.Test,
			Assignment: payload.Weights.Assignment,
		})
	}

	if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Int("subjects", len(curriculum)).Msg("curriculum replaced")

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) UploadThumbnail(ctx context.Context, id uint, file *multipart.FileHeader) (dto.CourseResponse, error) {
	if file == nil {
		return dto.CourseResponse{}, fmt.Errorf("thumbnail file is required")
	}

	course, err := s.getCourse(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if err := validateImageType(file); err != nil {
		return dto.CourseResponse{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return dto.CourseResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	url, err := s.uploader.UploadThumbnail(ctx, course.ID, file.Filename, reader)
	if err != nil {
		return dto.CourseResponse{}, fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	course.Thumbnail = url
	if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Enroll(ctx context.Context, courseID, studentID uint) error {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return err
	}

	if course.Status != models.CourseStatusPublished {
		return ErrCourseNotPublished
	}

	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	enrolled, err := s.enrollments.Exists(ctx, courseID, studentID)
	if err != nil {
		return err
	}
	if enrolled {
		return ErrAlreadyEnrolled
	}

	count, err := s.enrollments.CountByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if count >= int64(course.StudentLimit) {
		return ErrCourseFull
	}

	enrollment := models.Enrollment{CourseID: courseID, StudentID: studentID}
	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		return err
	}

	s.logger.Info().Uint("course_id", courseID).Uint("student_id", studentID).Msg("student enrolled")

	return nil
}

func (s *courseService) getCourse(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}

	return course, nil
}

// validateContentIDs enforces the curriculum invariant that content item
// identifiers are unique within a course.
func validateContentIDs(curriculum progress.Curriculum) error {
	seen := make(map[string]struct{})
	for _, module := range curriculum {
		for _, chapter := range module.Chapters {
			for _, content := range chapter.Contents {
				if _, dup := seen[content.ID]; dup {
					return fmt.Errorf("duplicate content id %q in curriculum", content.ID)
				}
				seen[content.ID] = struct{}{}
			}
		}
	}

	return nil
}

func validateImageType(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	allowed := []string{"image/png", "image/jpeg", "image/webp"}
	for _, a := range allowed {
		if mime.Is(a) {
			return nil
		}
	}

	return fmt.Errorf("unsupported thumbnail type: %s", mime.String())
}
