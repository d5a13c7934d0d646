package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pathshala-labs/pathshala-api/internal/models"
)

// ProgressRepository is the progress store: one record per (student, course),
// replaced wholesale on every recompute.
type ProgressRepository interface {
	GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (models.CourseProgress, error)
	Save(ctx context.Context, record *models.CourseProgress) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (models.CourseProgress, error) {
	var record models.CourseProgress
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("course_id = ?", courseID).
		First(&record).Error; err != nil {
		return models.CourseProgress{}, err
	}

	return record, nil
}

// Save upserts against the (student_id, course_id) unique index so concurrent
// first completions for the same pair cannot create duplicate records, and a
// recompute either replaces the whole document or leaves the prior one intact.
func (r *progressRepository) Save(ctx context.Context, record *models.CourseProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completed_contents",
			"chapter_progress",
			"subject_progress",
			"overall_progress",
			"last_active_at",
			"updated_at",
		}),
	}).Create(record).Error
}
