package models

import "time"

// Notification represents a message surfaced to a specific student, such as a
// chapter or course completion milestone.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"index;not null" json:"student_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// NotificationTypeChapterCompleted marks a chapter completion milestone.
	NotificationTypeChapterCompleted = "chapter_completed"
	// NotificationTypeCourseCompleted marks a full course completion.
	NotificationTypeCourseCompleted = "course_completed"
)
