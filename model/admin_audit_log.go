package model

import (
	"time"
)

// AdminAuditLog is the audit trail for money-moving admin actions: refunds
// and withdrawal decisions.
type AdminAuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AdminID     uint      `gorm:"not null;index" json:"admin_id"`
	Action      string    `gorm:"type:varchar(100);not null" json:"action"` // e.g. "order_refund", "withdrawal_process"
	Resource    string    `gorm:"type:varchar(100)" json:"resource"`        // e.g. "orders", "withdrawals"
	ResourceID  uint      `json:"resource_id"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationships
	Admin User `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
