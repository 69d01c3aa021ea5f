package model

import (
	"time"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusRefunded  = "refunded"
)

// Order is one line of a Payment: a Payment fans out into one Order per
// purchased course. Price is the pre-discount line price; a coupon discount
// is a Payment-level deduction and is not distributed per line.
// InstructorEarning + PlatformEarning always equals Price, split by the
// commission rate frozen at sale time.
type Order struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	PaymentID         uint      `gorm:"not null;index" json:"payment_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	CourseID          uint      `gorm:"not null;index" json:"course_id"`
	InstructorID      uint      `gorm:"not null;index" json:"instructor_id"`
	CourseTitle       string    `json:"course_title"`
	Price             float64   `gorm:"not null" json:"price"`
	InstructorEarning float64   `gorm:"not null" json:"instructor_earning"`
	PlatformEarning   float64   `gorm:"not null" json:"platform_earning"`
	CommissionRate    float64   `gorm:"not null" json:"commission_rate"`
	Status            string    `gorm:"type:varchar(20);default:'completed'" json:"status"` // pending, completed, refunded

	// Relationships
	Payment    Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	User       User    `gorm:"foreignKey:UserID" json:"-"`
	Course     Course  `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Instructor User    `gorm:"foreignKey:InstructorID" json:"-"`
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}
