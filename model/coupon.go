package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Coupon discount kinds
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Coupon is a discount rule owned by an instructor or, when InstructorID is
// nil, by the platform. UsedCount is only ever advanced by the conditional
// atomic increment in checkout reconciliation; the advisory pricing path
// never mutates it.
type Coupon struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	Code          string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // stored upper-case
	DiscountType  string         `gorm:"type:varchar(20);not null" json:"discount_type"`    // percentage, fixed
	DiscountValue float64        `gorm:"not null" json:"discount_value"`
	MaxUses       int            `gorm:"default:0" json:"max_uses"` // 0 = unlimited
	UsedCount     int            `gorm:"default:0" json:"used_count"`
	ValidFrom     time.Time      `json:"valid_from"`
	ValidUntil    time.Time      `json:"valid_until"`
	// CourseIDs restricts the coupon to a course set; empty means all courses.
	CourseIDs         datatypes.JSONSlice[uint] `gorm:"type:jsonb" json:"course_ids"`
	MinPurchaseAmount float64                   `gorm:"default:0" json:"min_purchase_amount"`
	InstructorID      *uint                     `gorm:"index" json:"instructor_id,omitempty"`
	Active            bool                      `gorm:"default:true" json:"active"`

	// Relationships
	Instructor  *User              `gorm:"foreignKey:InstructorID" json:"-"`
	Redemptions []CouponRedemption `gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Coupon
func (Coupon) TableName() string {
	return "coupons"
}

// AppliesTo reports whether the coupon's course scope intersects the given
// candidate course ids. An empty scope applies to everything.
func (c *Coupon) AppliesTo(courseIDs []uint) bool {
	if len(c.CourseIDs) == 0 {
		return true
	}
	scoped := make(map[uint]struct{}, len(c.CourseIDs))
	for _, id := range c.CourseIDs {
		scoped[id] = struct{}{}
	}
	for _, id := range courseIDs {
		if _, ok := scoped[id]; ok {
			return true
		}
	}
	return false
}

// CouponRedemption records one successful redemption during checkout
// reconciliation. Kept for analysis; single-use-per-user is not enforced.
type CouponRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	CouponID  uint      `gorm:"not null;index" json:"coupon_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PaymentID uint      `gorm:"not null" json:"payment_id"`
}

// TableName specifies the table name for CouponRedemption
func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
