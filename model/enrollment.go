package model

import (
	"time"

	"gorm.io/datatypes"
)

// Enrollment statuses
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusExpired   = "expired"
)

// Enrollment grants a user access to a course. Unique per (user, course);
// re-purchase upserts and must leave existing progress untouched. A refund
// deletes the row outright rather than rewinding progress.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	// OrderID is nil for free-course opt-ins and admin manual grants.
	OrderID  *uint   `json:"order_id,omitempty"`
	Progress float64 `gorm:"default:0" json:"progress"` // percent, monotonically non-decreasing
	// CompletedLectures is the set of finished content-unit ids.
	CompletedLectures datatypes.JSONSlice[string] `json:"completed_lectures"`
	Status            string                      `gorm:"type:varchar(20);default:'active'" json:"status"` // active, completed, expired

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Order  *Order `gorm:"foreignKey:OrderID" json:"-"`
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}

// HasCompleted reports whether the given content unit is already recorded.
func (e *Enrollment) HasCompleted(lectureID string) bool {
	for _, id := range e.CompletedLectures {
		if id == lectureID {
			return true
		}
	}
	return false
}
