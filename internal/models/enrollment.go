package models

import "time"

// Enrollment links a student to a course they have joined. The composite
// unique index enforces at most one enrollment per (course, student) pair.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollments_course_student" json:"course_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollments_course_student" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
