package model

import (
	"time"

	"gorm.io/datatypes"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusFailed    = "failed"
)

// Payment is one record per confirmed provider transaction. The unique
// ProviderSessionID is the idempotency key for reconciliation: redelivered
// confirmations hit the constraint and return the existing row instead of
// settling twice.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	TransactionID     string     `gorm:"type:varchar(100)" json:"transaction_id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	Name              string     `json:"name"`  // payer snapshot
	Email             string     `json:"email"` // payer snapshot
	TotalAmount       float64    `gorm:"not null" json:"total_amount"`
	InvoiceNo         string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"invoice_no"`
	ProviderSessionID string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"provider_session_id"`
	CouponCode        string     `gorm:"type:varchar(50)" json:"coupon_code,omitempty"`
	DiscountAmount    float64    `gorm:"default:0" json:"discount_amount"`
	Status            string     `gorm:"type:varchar(20);default:'pending'" json:"status"` // pending, completed, refunded, failed
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	// Metadata keeps the versioned line-item payload the session carried, for
	// audit and replay.
	Metadata datatypes.JSON `json:"-"`

	// Relationships
	User   User    `gorm:"foreignKey:UserID" json:"-"`
	Orders []Order `gorm:"foreignKey:PaymentID" json:"orders,omitempty"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}
