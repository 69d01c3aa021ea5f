package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/gorm"
)

var (
	ErrAlreadyInCart = errors.New("course is already in the cart")
	ErrNoCartOwner   = errors.New("cart actor has neither user nor guest token")
)

// CartActor identifies a cart owner: a signed-in user or an anonymous
// visitor holding a guest token. Exactly one side is set.
type CartActor struct {
	UserID     *uint
	GuestToken string
}

// Known reports whether the actor carries any identity at all.
func (a CartActor) Known() bool {
	return a.UserID != nil || a.GuestToken != ""
}

// CartService holds pending line items prior to purchase
type CartService struct {
	db *gorm.DB
}

// NewCartService creates a new cart service
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// AddResult is the outcome of Add. GuestToken is non-empty only when the
// service minted a fresh token for an anonymous visitor; the caller must
// hand it back to the client for persistence.
type AddResult struct {
	Item       *model.CartItem
	GuestToken string
}

// Add puts a course into the actor's cart, snapshotting the price. An
// anonymous actor without a token gets a freshly minted one. The storage
// layer's unique (owner, course) index is the authority on duplicates, so
// concurrent adds of the same pair cannot both succeed.
func (s *CartService) Add(ctx context.Context, actor CartActor, courseID uint, price float64, instructorID uint) (*AddResult, error) {
	result := &AddResult{}

	item := model.CartItem{
		CourseID:     courseID,
		Price:        price,
		InstructorID: instructorID,
	}

	switch {
	case actor.UserID != nil:
		item.UserID = actor.UserID
	case actor.GuestToken != "":
		item.GuestToken = actor.GuestToken
	default:
		// Mint a guest token; this is the only place the commerce core
		// creates identity-like tokens.
		result.GuestToken = uuid.New().String()
		item.GuestToken = result.GuestToken
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyInCart
		}
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	result.Item = &item
	return result, nil
}

// List returns the actor's cart items in insertion order. Unknown actors get
// an empty cart.
func (s *CartService) List(ctx context.Context, actor CartActor) ([]model.CartItem, error) {
	if !actor.Known() {
		return []model.CartItem{}, nil
	}

	var items []model.CartItem
	query := s.db.WithContext(ctx).Preload("Course").Order("id ASC")
	if actor.UserID != nil {
		query = query.Where("user_id = ?", *actor.UserID)
	} else {
		query = query.Where("guest_token = ?", actor.GuestToken)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	return items, nil
}

// Remove deletes a cart item by id. Removing a non-existent id is not an
// error.
func (s *CartService) Remove(ctx context.Context, itemID uint) error {
	if err := s.db.WithContext(ctx).Delete(&model.CartItem{}, itemID).Error; err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Clear deletes all of the actor's cart items. Called after successful
// checkout and on explicit "empty cart".
func (s *CartService) Clear(ctx context.Context, actor CartActor) error {
	if !actor.Known() {
		return nil
	}

	query := s.db.WithContext(ctx)
	if actor.UserID != nil {
		query = query.Where("user_id = ?", *actor.UserID)
	} else {
		query = query.Where("guest_token = ?", actor.GuestToken)
	}

	if err := query.Delete(&model.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Merge moves guest cart items onto the user after login. Items for courses
// the user already carries are discarded. Idempotent, and a no-op for an
// empty token.
func (s *CartService) Merge(ctx context.Context, guestToken string, userID uint) error {
	if guestToken == "" {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guestItems []model.CartItem
		if err := tx.Where("guest_token = ?", guestToken).Order("id ASC").Find(&guestItems).Error; err != nil {
			return fmt.Errorf("failed to load guest cart: %w", err)
		}

		for _, item := range guestItems {
			var count int64
			err := tx.Model(&model.CartItem{}).
				Where("user_id = ? AND course_id = ?", userID, item.CourseID).
				Count(&count).Error
			if err != nil {
				return fmt.Errorf("failed to check user cart: %w", err)
			}

			if count > 0 {
				// User already has this course in the cart; drop the guest copy.
				if err := tx.Delete(&model.CartItem{}, item.ID).Error; err != nil {
					return fmt.Errorf("failed to drop duplicate guest item: %w", err)
				}
				continue
			}

			updates := map[string]interface{}{
				"user_id":     userID,
				"guest_token": "",
			}
			// A concurrent merge racing past the check above still trips the
			// unique (user, course) index and rolls the transaction back.
			if err := tx.Model(&model.CartItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to reassign guest item: %w", err)
			}
		}

		return nil
	})
}
