package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyRefunded = errors.New("order already refunded")
)

// SettlementService owns the refund path: unwinding one Order's effects on
// Payment, Enrollment, course counters and the instructor balance as a
// single transaction.
type SettlementService struct {
	db *gorm.DB
}

// NewSettlementService creates a new settlement service
func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{db: db}
}

// Refund reverses a completed order. The learner loses access immediately
// (the enrollment is deleted outright, no partial-progress retention) and
// the instructor's balance is debited by the frozen earning. The debit may
// drive the balance negative when the money was already withdrawn; that is
// recorded as instructor debt rather than clamped.
func (s *SettlementService) Refund(ctx context.Context, orderID uint, adminID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to load order: %w", err)
		}
		if order.Status == model.OrderStatusRefunded {
			return ErrAlreadyRefunded
		}

		// 1. Flip the order.
		if err := tx.Model(&order).UpdateColumn("status", model.OrderStatusRefunded).Error; err != nil {
			return fmt.Errorf("failed to mark order refunded: %w", err)
		}

		// 2. Flip the payment with a timestamp.
		now := time.Now()
		err := tx.Model(&model.Payment{}).Where("id = ?", order.PaymentID).
			UpdateColumns(map[string]interface{}{
				"status":      model.PaymentStatusRefunded,
				"refunded_at": &now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark payment refunded: %w", err)
		}

		// 3. Remove access.
		err = tx.Where("user_id = ? AND course_id = ?", order.UserID, order.CourseID).
			Delete(&model.Enrollment{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete enrollment: %w", err)
		}

		// 4. Reverse course counters.
		err = tx.Model(&model.Course{}).Where("id = ?", order.CourseID).
			UpdateColumns(map[string]interface{}{
				"total_enrollments": gorm.Expr("total_enrollments - 1"),
				"total_revenue":     gorm.Expr("total_revenue - ?", order.Price),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to reverse course counters: %w", err)
		}

		// 5. Reverse instructor earnings.
		err = tx.Model(&model.User{}).Where("id = ?", order.InstructorID).
			UpdateColumns(map[string]interface{}{
				"total_earnings":    gorm.Expr("total_earnings - ?", order.InstructorEarning),
				"available_balance": gorm.Expr("available_balance - ?", order.InstructorEarning),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to reverse instructor earnings: %w", err)
		}

		audit := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      "order_refund",
			Resource:    "orders",
			ResourceID:  order.ID,
			Description: fmt.Sprintf("refunded order %d, reversed %.2f from instructor %d", order.ID, order.InstructorEarning, order.InstructorID),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		return nil
	})
}
