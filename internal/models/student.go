package models

import "time"

// Student represents a learner account on the platform.
type Student struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Email      string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone      string    `gorm:"size:32" json:"phone,omitempty"`
	ClassLevel string    `gorm:"size:32" json:"class_level,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
