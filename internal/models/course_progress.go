package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/pathshala-labs/pathshala-api/internal/progress"
)

// CourseProgress is the persisted progress record for one (student, course)
// pair. The completion set and the derived per-chapter/per-subject summaries
// are stored as JSON documents and fully replaced on every recompute; nothing
// outside the progress service writes the derived columns.
type CourseProgress struct {
	ID                uint                                            `gorm:"primaryKey" json:"id"`
	StudentID         uint                                            `gorm:"not null;uniqueIndex:idx_course_progress_student_course" json:"student_id"`
	CourseID          uint                                            `gorm:"not null;uniqueIndex:idx_course_progress_student_course" json:"course_id"`
	CompletedContents datatypes.JSONType[[]progress.Completion]       `gorm:"type:json" json:"completedContents"`
	ChapterProgress   datatypes.JSONType[[]progress.ChapterProgress]  `gorm:"type:json" json:"chapterProgress"`
	SubjectProgress   datatypes.JSONType[[]progress.SubjectProgress]  `gorm:"type:json" json:"subjectProgress"`
	OverallProgress   int                                             `gorm:"default:0" json:"overallProgress"`
	LastActiveAt      time.Time                                       `json:"lastActiveAt"`
	CreatedAt         time.Time                                       `json:"created_at"`
	UpdatedAt         time.Time                                       `json:"updated_at"`
}
