package model

import (
	"time"

	"gorm.io/gorm"
)

// Category groups courses in the catalog
type Category struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`

	Courses []Course `gorm:"foreignKey:CategoryID" json:"-"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// Course is a catalog row. The commerce core reads price/instructor from it
// and maintains the aggregate counters (TotalEnrollments, TotalRevenue)
// during settlement and refund reversal. Authoring and media live elsewhere.
type Course struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Title         string         `gorm:"not null" json:"title"`
	Slug          string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string         `gorm:"type:text" json:"description"`
	Price         float64        `gorm:"not null;default:0" json:"price"`
	DiscountPrice float64        `gorm:"default:0" json:"discount_price"`
	InstructorID  uint           `gorm:"not null;index" json:"instructor_id"`
	CategoryID    *uint          `gorm:"index" json:"category_id,omitempty"`
	Status        string         `gorm:"type:varchar(20);default:'active'" json:"status"` // pending, active, rejected

	// Aggregate counters, mutated only by atomic increments during
	// reconciliation/refund and repaired by the counter drift cron job.
	TotalEnrollments int     `gorm:"default:0" json:"total_enrollments"`
	TotalRevenue     float64 `gorm:"default:0" json:"total_revenue"`

	// Relationships
	Instructor User      `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// EffectivePrice returns the discount price when one is set, otherwise the
// list price.
func (c *Course) EffectivePrice() float64 {
	if c.DiscountPrice > 0 && c.DiscountPrice < c.Price {
		return c.DiscountPrice
	}
	return c.Price
}
