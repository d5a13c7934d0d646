package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/pathshala-labs/pathshala-api/internal/progress"
)

// Course is a sellable course together with its embedded curriculum document.
// The curriculum and weight override are stored as JSON columns so the nested
// subject -> chapter -> content tree round-trips as one document.
type Course struct {
	ID             uint                                         `gorm:"primaryKey" json:"id"`
	Title          string                                       `gorm:"size:255;not null" json:"title"`
	Description    string                                       `gorm:"type:text" json:"description"`
	InstructorID   uint                                         `gorm:"index" json:"instructor_id"`
	Thumbnail      string                                       `gorm:"size:512" json:"thumbnail"`
	Price          float64                                      `gorm:"default:0" json:"price"`
	Currency       string                                       `gorm:"size:8;default:INR" json:"currency"`
	ClassLevel     string                                       `gorm:"size:32" json:"class_level"`
	Subject        string                                       `gorm:"size:64;default:All" json:"subject"`
	StudentLimit   int                                          `gorm:"default:1000" json:"student_limit"`
	HasCertificate bool                                         `gorm:"default:true" json:"has_certificate"`
	Status         string                                       `gorm:"size:32;default:draft" json:"status"`
	Curriculum     datatypes.JSONType[progress.Curriculum]      `gorm:"type:json" json:"curriculum"`
	Weights        datatypes.JSONType[progress.WeightConfig]    `gorm:"column:progress_weights;type:json" json:"progress_weights"`
	CreatedAt      time.Time                                    `json:"created_at"`
	UpdatedAt      time.Time                                    `json:"updated_at"`
}

const (
	// CourseStatusDraft marks a course that is not yet visible to students.
	CourseStatusDraft = "draft"
	// CourseStatusPublished marks a course open for enrollment.
	CourseStatusPublished = "published"
	// CourseStatusArchived marks a retired course kept for existing students.
	CourseStatusArchived = "archived"
)

// ProgressWeights returns the course's weight override, falling back to the
// platform defaults when none has been configured.
func (c Course) ProgressWeights() progress.WeightConfig {
	weights := c.Weights.Data()
	if weights.IsZero() {
		return progress.DefaultWeights()
	}
	return weights
}
