package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kodexa-lms/commerce-api/config"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services/payment"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEmptyCart       = errors.New("no items to check out")
	ErrNotPaid         = errors.New("payment not completed")
	ErrBadSessionMeta  = errors.New("unreadable checkout session metadata")
	ErrNotSessionOwner = errors.New("checkout session belongs to another user")
)

// metadataKey is the provider metadata field carrying the line-item payload.
const metadataKey = "payload"

// checkoutMetadata is the versioned payload embedded in the provider session
// so reconciliation can rebuild the order set without trusting a second
// client submission. The version field guards provider-side size limits and
// future schema changes.
type checkoutMetadata struct {
	Version        int        `json:"v"`
	UserID         uint       `json:"user_id"`
	Items          []LineItem `json:"items"`
	CouponCode     string     `json:"coupon_code,omitempty"`
	DiscountAmount float64    `json:"discount_amount,omitempty"`
}

const metadataVersion = 1

// LineItem is one (course, price, instructor) triple in a checkout request.
type LineItem struct {
	CourseID     uint    `json:"course_id" validate:"required,min=1"`
	CourseTitle  string  `json:"course_title" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	InstructorID uint    `json:"instructor_id" validate:"required,min=1"`
}

// CheckoutService runs the two-phase checkout protocol: open a provider
// session, then reconcile the provider's confirmation into durable
// Payment/Order/Enrollment/balance records.
type CheckoutService struct {
	db             *gorm.DB
	provider       payment.Provider
	coupons        *CouponService
	emails         *EmailService
	clientURL      string
	commissionRate float64
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(db *gorm.DB, provider payment.Provider, coupons *CouponService, emails *EmailService, env *config.EnviornmentVariable) *CheckoutService {
	rate := config.DefaultCommissionRate
	clientURL := "http://localhost:3000"
	if env != nil {
		rate = env.PLATFORM_COMMISSION_RATE
		clientURL = env.CLIENT_URL
	}
	return &CheckoutService{
		db:             db,
		provider:       provider,
		coupons:        coupons,
		emails:         emails,
		clientURL:      clientURL,
		commissionRate: rate,
	}
}

// SessionResult is what the client needs to hand control to the provider.
type SessionResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// CreateSession opens a provider-hosted payment session for the buyer's line
// items. Phase A of the protocol: no durable state changes happen here.
func (s *CheckoutService) CreateSession(ctx context.Context, buyer *model.User, items []LineItem, couponCode string, discountAmount float64) (*SessionResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	meta := checkoutMetadata{
		Version:        metadataVersion,
		UserID:         buyer.ID,
		Items:          items,
		CouponCode:     strings.ToUpper(strings.TrimSpace(couponCode)),
		DiscountAmount: discountAmount,
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session metadata: %w", err)
	}

	params := payment.CreateSessionParams{
		CustomerEmail: buyer.Email,
		SuccessURL:    s.clientURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.clientURL + "/payment-cancel",
		Metadata:      map[string]string{metadataKey: string(payload)},
	}
	for _, item := range items {
		params.LineItems = append(params.LineItems, payment.SessionLineItem{
			Name:   item.CourseTitle,
			Amount: item.Price,
		})
	}

	// The provider only understands amount-off discounts; percentage coupons
	// were already converted to a fixed figure by the advisory pricing step.
	if discountAmount > 0 {
		couponID, err := s.provider.CreateAmountOffCoupon(ctx, discountAmount)
		if err != nil {
			return nil, err
		}
		params.CouponID = couponID
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}

	return &SessionResult{URL: session.URL, SessionID: session.ID}, nil
}

// Reconcile converts a confirmed provider session into durable records.
// Phase B: safe under at-least-once delivery. The unique ProviderSessionID
// on Payment is the dedup key; everything from Payment creation through cart
// clearing runs in one database transaction so a mid-loop failure can never
// leave a partial order set behind.
func (s *CheckoutService) Reconcile(ctx context.Context, sessionID string, buyer *model.User) (*model.Payment, error) {
	session, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus != payment.StatusPaid {
		return nil, ErrNotPaid
	}

	// Fast path: already processed. Racing calls that pass this check are
	// caught again by the unique index inside the transaction.
	if existing, err := s.findPayment(ctx, sessionID); err == nil {
		if existing.UserID != buyer.ID {
			return nil, ErrNotSessionOwner
		}
		return existing, nil
	}

	meta, err := decodeMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	// The session was opened for a specific buyer; a replay under another
	// account must not credit that account's snapshot or enrollments.
	if meta.UserID != buyer.ID {
		return nil, ErrNotSessionOwner
	}

	var created model.Payment
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = model.Payment{
			TransactionID:     session.PaymentIntentID,
			UserID:            meta.UserID,
			Name:              buyer.Name,
			Email:             buyer.Email,
			TotalAmount:       session.AmountTotal,
			InvoiceNo:         newInvoiceNo(),
			ProviderSessionID: sessionID,
			CouponCode:        meta.CouponCode,
			DiscountAmount:    meta.DiscountAmount,
			Status:            model.PaymentStatusCompleted,
			Metadata:          datatypes.JSON([]byte(session.Metadata[metadataKey])),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		for _, item := range meta.Items {
			if err := s.settleLineItem(tx, &created, meta.UserID, item); err != nil {
				return err
			}
		}

		if meta.CouponCode != "" {
			if err := s.coupons.RedeemTx(tx, meta.CouponCode, meta.UserID, created.ID); err != nil {
				return err
			}
		}

		// Clear the buyer's cart inside the same transaction.
		if err := tx.Where("user_id = ?", meta.UserID).Delete(&model.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// A concurrent reconciliation won the race; return its result.
			return s.findPayment(ctx, sessionID)
		}
		return nil, txErr
	}

	s.notify(buyer, &created, meta.Items)
	return &created, nil
}

// settleLineItem creates the Order, upserts the Enrollment and applies the
// counter/balance increments for one purchased course.
func (s *CheckoutService) settleLineItem(tx *gorm.DB, pay *model.Payment, userID uint, item LineItem) error {
	rate := s.commissionRate
	var instructor model.User
	if err := tx.First(&instructor, item.InstructorID).Error; err == nil && instructor.CommissionRate > 0 {
		rate = instructor.CommissionRate
	}

	platformEarning := round2(item.Price * rate / 100)
	instructorEarning := round2(item.Price - platformEarning)

	order := model.Order{
		PaymentID:         pay.ID,
		UserID:            userID,
		CourseID:          item.CourseID,
		InstructorID:      item.InstructorID,
		CourseTitle:       item.CourseTitle,
		Price:             item.Price,
		InstructorEarning: instructorEarning,
		PlatformEarning:   platformEarning,
		CommissionRate:    rate,
		Status:            model.OrderStatusCompleted,
	}
	if err := tx.Create(&order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	// Upsert keyed on the unique (user, course) index: a re-purchase leaves
	// the existing row and its progress untouched.
	enrollment := model.Enrollment{
		UserID:   userID,
		CourseID: item.CourseID,
		OrderID:  &order.ID,
		Status:   model.EnrollmentStatusActive,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(&enrollment).Error
	if err != nil {
		return fmt.Errorf("failed to upsert enrollment: %w", err)
	}

	// Counter and balance mutations are atomic arithmetic updates, never
	// read-modify-write.
	err = tx.Model(&model.Course{}).Where("id = ?", item.CourseID).
		UpdateColumns(map[string]interface{}{
			"total_enrollments": gorm.Expr("total_enrollments + 1"),
			"total_revenue":     gorm.Expr("total_revenue + ?", item.Price),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update course counters: %w", err)
	}

	err = tx.Model(&model.User{}).Where("id = ?", item.InstructorID).
		UpdateColumns(map[string]interface{}{
			"total_earnings":    gorm.Expr("total_earnings + ?", instructorEarning),
			"available_balance": gorm.Expr("available_balance + ?", instructorEarning),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to credit instructor: %w", err)
	}

	return nil
}

// notify sends the post-settlement emails. Fire-and-forget: a notification
// failure never fails a settled payment.
func (s *CheckoutService) notify(buyer *model.User, pay *model.Payment, items []LineItem) {
	if s.emails == nil {
		return
	}

	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.CourseTitle)
		go func(title string) {
			if err := s.emails.SendEnrollmentConfirmation(buyer.Email, buyer.Name, title); err != nil {
				log.Printf("enrollment email failed for %s: %v", buyer.Email, err)
			}
		}(item.CourseTitle)
	}

	go func() {
		if err := s.emails.SendPaymentReceipt(buyer.Email, buyer.Name, pay.InvoiceNo, pay.TotalAmount, strings.Join(titles, ", ")); err != nil {
			log.Printf("receipt email failed for %s: %v", buyer.Email, err)
		}
	}()
}

func (s *CheckoutService) findPayment(ctx context.Context, sessionID string) (*model.Payment, error) {
	var pay model.Payment
	err := s.db.WithContext(ctx).Where("provider_session_id = ?", sessionID).First(&pay).Error
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

func decodeMetadata(raw map[string]string) (*checkoutMetadata, error) {
	payload, ok := raw[metadataKey]
	if !ok || payload == "" {
		return nil, ErrBadSessionMeta
	}

	var meta checkoutMetadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSessionMeta, err)
	}
	if meta.Version != metadataVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSessionMeta, meta.Version)
	}
	if meta.UserID == 0 || len(meta.Items) == 0 {
		return nil, ErrBadSessionMeta
	}
	return &meta, nil
}

// newInvoiceNo generates a unique human-readable invoice number.
func newInvoiceNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return fmt.Sprintf("INV-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
