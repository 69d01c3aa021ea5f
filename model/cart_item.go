package model

import (
	"time"
)

// CartItem is one candidate purchase. It is owned either by a signed-in user
// (UserID set) or an anonymous visitor (GuestToken set), never both. The
// composite unique indexes enforce at most one item per (owner, course) pair
// at the storage layer, so concurrent add-to-cart calls cannot create
// duplicates.
type CartItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       *uint     `gorm:"uniqueIndex:idx_cart_user_course,where:user_id IS NOT NULL" json:"user_id,omitempty"`
	GuestToken   string    `gorm:"type:varchar(64);uniqueIndex:idx_cart_guest_course,where:guest_token <> '';index" json:"guest_token,omitempty"`
	CourseID     uint      `gorm:"not null;uniqueIndex:idx_cart_user_course;uniqueIndex:idx_cart_guest_course" json:"course_id"`
	Price        float64   `gorm:"not null" json:"price"` // snapshotted at add-time
	InstructorID uint      `gorm:"not null" json:"instructor_id"`

	// Relationships
	User   *User  `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for CartItem
func (CartItem) TableName() string {
	return "cart_items"
}
