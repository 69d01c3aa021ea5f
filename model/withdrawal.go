package model

import (
	"time"

	"gorm.io/datatypes"
)

// Withdrawal statuses
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

// Withdrawal is an instructor payout request. The balance check at request
// time is advisory only; money moves when an admin transitions the request
// to completed. Rejected and completed are terminal.
type Withdrawal struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	InstructorID   uint           `gorm:"not null;index" json:"instructor_id"`
	Amount         float64        `gorm:"not null" json:"amount"`
	Method         string         `gorm:"type:varchar(50)" json:"method"` // bank_transfer, paypal, ...
	AccountDetails datatypes.JSON `json:"account_details,omitempty"`
	Status         string         `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Note           string         `gorm:"type:text" json:"note,omitempty"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`

	// Relationships
	Instructor User `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
}

// TableName specifies the table name for Withdrawal
func (Withdrawal) TableName() string {
	return "withdrawals"
}

// IsTerminal reports whether the withdrawal has already been decided.
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalStatusRejected || w.Status == WithdrawalStatusCompleted
}
