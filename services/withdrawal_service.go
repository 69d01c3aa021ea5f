package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient available balance")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrWithdrawalProcessed   = errors.New("withdrawal already in a terminal state")
	ErrInvalidWithdrawalMove = errors.New("invalid withdrawal status transition")
)

// WithdrawalService handles instructor payout requests against settled
// balance. The balance guard at request time is advisory; money moves only
// on the admin transition into completed, as an atomic debit.
type WithdrawalService struct {
	db *gorm.DB
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(db *gorm.DB) *WithdrawalService {
	return &WithdrawalService{db: db}
}

// Request creates a pending payout request.
func (s *WithdrawalService) Request(ctx context.Context, instructor *model.User, amount float64, method string, accountDetails datatypes.JSON) (*model.Withdrawal, error) {
	if amount > instructor.AvailableBalance {
		return nil, ErrInsufficientBalance
	}

	withdrawal := model.Withdrawal{
		InstructorID:   instructor.ID,
		Amount:         amount,
		Method:         method,
		AccountDetails: accountDetails,
		Status:         model.WithdrawalStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&withdrawal).Error; err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return &withdrawal, nil
}

// ListForInstructor returns the instructor's payout requests, newest first.
func (s *WithdrawalService) ListForInstructor(ctx context.Context, instructorID uint) ([]model.Withdrawal, error) {
	var withdrawals []model.Withdrawal
	err := s.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// ListAll returns every payout request for the admin view.
func (s *WithdrawalService) ListAll(ctx context.Context) ([]model.Withdrawal, error) {
	var withdrawals []model.Withdrawal
	err := s.db.WithContext(ctx).
		Preload("Instructor").
		Order("created_at DESC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// Process applies an admin decision. Terminal requests (rejected or
// completed) cannot be re-processed; the guard is a conditional update so
// two admins racing on the same request cannot both move money. Only the
// transition into completed debits the balance.
func (s *WithdrawalService) Process(ctx context.Context, withdrawalID uint, status string, note string, adminID uint) (*model.Withdrawal, error) {
	switch status {
	case model.WithdrawalStatusApproved, model.WithdrawalStatusRejected, model.WithdrawalStatusCompleted:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidWithdrawalMove, status)
	}

	var withdrawal model.Withdrawal
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&withdrawal, withdrawalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("failed to load withdrawal: %w", err)
		}
		if withdrawal.IsTerminal() {
			return ErrWithdrawalProcessed
		}

		now := time.Now()
		result := tx.Model(&model.Withdrawal{}).
			Where("id = ? AND status NOT IN ?", withdrawalID,
				[]string{model.WithdrawalStatusRejected, model.WithdrawalStatusCompleted}).
			Updates(map[string]interface{}{
				"status":       status,
				"note":         note,
				"processed_at": &now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update withdrawal: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrWithdrawalProcessed
		}

		if status == model.WithdrawalStatusCompleted {
			err := tx.Model(&model.User{}).Where("id = ?", withdrawal.InstructorID).
				UpdateColumn("available_balance", gorm.Expr("available_balance - ?", withdrawal.Amount)).Error
			if err != nil {
				return fmt.Errorf("failed to debit instructor balance: %w", err)
			}
		}

		audit := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      "withdrawal_process",
			Resource:    "withdrawals",
			ResourceID:  withdrawal.ID,
			Description: fmt.Sprintf("withdrawal %d moved to %s (%.2f)", withdrawal.ID, status, withdrawal.Amount),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		withdrawal.Status = status
		withdrawal.Note = note
		withdrawal.ProcessedAt = &now
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return &withdrawal, nil
}
