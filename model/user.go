package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User represents a registered user in the system. Instructors additionally
// carry running earnings totals maintained by checkout settlement, refund
// reversal and withdrawal processing.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, instructor, admin
	Status       string         `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Instructor settlement fields. CommissionRate is the platform's cut in
	// percent; 0 means "use the platform default". The rate in effect at sale
	// time is frozen into each Order and never re-read.
	CommissionRate   float64 `gorm:"default:0" json:"commission_rate,omitempty"`
	TotalEarnings    float64 `gorm:"default:0" json:"total_earnings"`
	AvailableBalance float64 `gorm:"default:0" json:"available_balance"`

	// Relationships
	Courses     []Course     `gorm:"foreignKey:InstructorID" json:"-"`
	Orders      []Order      `gorm:"foreignKey:UserID" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Withdrawals []Withdrawal `gorm:"foreignKey:InstructorID" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsInstructor reports whether the user can own courses and coupons.
func (u *User) IsInstructor() bool {
	return u.Role == RoleInstructor || u.Role == RoleAdmin
}
