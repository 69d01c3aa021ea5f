package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/gorm"
)

var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponNotYetValid  = errors.New("coupon not yet valid")
	ErrCouponUsageLimit   = errors.New("coupon usage limit reached")
	ErrCouponBelowMinimum = errors.New("order total below coupon minimum purchase amount")
	ErrCouponWrongCourses = errors.New("coupon not valid for these courses")
	ErrCouponNotOwned     = errors.New("coupon belongs to another instructor")
)

// CouponService validates and prices discounts. The Apply path is read-only
// advisory pricing; the authoritative usage-count mutation happens once, via
// RedeemTx, inside checkout reconciliation.
type CouponService struct {
	db *gorm.DB
}

// NewCouponService creates a new coupon service
func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

// Quote is the advisory pricing result for a coupon application.
type Quote struct {
	Code           string  `json:"code"`
	DiscountType   string  `json:"discount_type"`
	DiscountValue  float64 `json:"discount_value"`
	DiscountAmount float64 `json:"discount"`
	FinalAmount    float64 `json:"final_amount"`
}

// Apply evaluates a coupon against a candidate order without mutating it, so
// a shopper who previews a price and abandons checkout does not spend a use.
// Validation order: existence, temporal validity, usage cap, minimum
// purchase, course scope.
func (s *CouponService) Apply(ctx context.Context, code string, courseIDs []uint, totalAmount float64) (*Quote, error) {
	coupon, err := s.findActive(ctx, s.db, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if now.After(coupon.ValidUntil) {
		return nil, ErrCouponExpired
	}
	if now.Before(coupon.ValidFrom) {
		return nil, ErrCouponNotYetValid
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return nil, ErrCouponUsageLimit
	}
	if coupon.MinPurchaseAmount > 0 && totalAmount < coupon.MinPurchaseAmount {
		return nil, fmt.Errorf("%w: minimum is %.2f", ErrCouponBelowMinimum, coupon.MinPurchaseAmount)
	}
	// A coupon scoped to courses the cart doesn't contain must fail, not
	// silently discount zero.
	if !coupon.AppliesTo(courseIDs) {
		return nil, ErrCouponWrongCourses
	}

	var discount float64
	if coupon.DiscountType == model.DiscountPercentage {
		discount = totalAmount * coupon.DiscountValue / 100
	} else {
		discount = coupon.DiscountValue
	}
	// Never discount past zero remaining.
	if discount > totalAmount {
		discount = totalAmount
	}

	return &Quote{
		Code:           coupon.Code,
		DiscountType:   coupon.DiscountType,
		DiscountValue:  coupon.DiscountValue,
		DiscountAmount: discount,
		FinalAmount:    totalAmount - discount,
	}, nil
}

// RedeemTx is the authoritative redemption: a conditional atomic increment
// that cannot overshoot the usage cap under concurrent checkouts, plus a
// redemption record for the buyer. Must run inside the reconciliation
// transaction so a failed settlement never burns a use.
func (s *CouponService) RedeemTx(tx *gorm.DB, code string, userID uint, paymentID uint) error {
	coupon, err := s.findActive(context.Background(), tx, code)
	if err != nil {
		return err
	}

	result := tx.Model(&model.Coupon{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", coupon.ID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCouponUsageLimit
	}

	redemption := model.CouponRedemption{
		CouponID:  coupon.ID,
		UserID:    userID,
		PaymentID: paymentID,
	}
	if err := tx.Create(&redemption).Error; err != nil {
		return fmt.Errorf("failed to record coupon redemption: %w", err)
	}

	return nil
}

// Create stores a new coupon; codes are normalized to upper-case.
func (s *CouponService) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := s.db.WithContext(ctx).Create(coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("coupon code %s already exists", coupon.Code)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

// ListForInstructor returns an instructor's coupons; admins see everything.
func (s *CouponService) ListForInstructor(ctx context.Context, user *model.User) ([]model.Coupon, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if user.Role != model.RoleAdmin {
		query = query.Where("instructor_id = ?", user.ID)
	}

	var coupons []model.Coupon
	if err := query.Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	return coupons, nil
}

// Get loads a coupon and checks ownership for non-admin callers.
func (s *CouponService) Get(ctx context.Context, id uint, user *model.User) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := s.db.WithContext(ctx).First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}

	if user.Role != model.RoleAdmin {
		if coupon.InstructorID == nil || *coupon.InstructorID != user.ID {
			return nil, ErrCouponNotOwned
		}
	}
	return &coupon, nil
}

// Update persists edits to an owned coupon. Deleting or editing a coupon is
// independent of in-flight orders: sessions already opened settle against
// the discount frozen in their metadata.
func (s *CouponService) Update(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if err := s.db.WithContext(ctx).Save(coupon).Error; err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	return nil
}

// Delete removes an owned coupon.
func (s *CouponService) Delete(ctx context.Context, id uint, user *model.User) error {
	coupon, err := s.Get(ctx, id, user)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(coupon).Error; err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	return nil
}

func (s *CouponService) findActive(ctx context.Context, db *gorm.DB, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := db.WithContext(ctx).
		Where("code = ? AND active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	return &coupon, nil
}
