package checkout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/services/payment"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"github.com/kodexa-lms/commerce-api/utils/validation"
	"gorm.io/gorm"
)

// CheckoutHandler handles checkout-related requests
type CheckoutHandler struct {
	db              *gorm.DB
	validator       *validation.Validator
	checkoutService *services.CheckoutService
	cartService     *services.CartService
	couponService   *services.CouponService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(db *gorm.DB, checkoutService *services.CheckoutService, cartService *services.CartService, couponService *services.CouponService) *CheckoutHandler {
	return &CheckoutHandler{
		db:              db,
		validator:       validation.NewValidator(),
		checkoutService: checkoutService,
		cartService:     cartService,
		couponService:   couponService,
	}
}

// CreateSessionRequest represents the request body for opening a checkout
// session. Items default to the user's cart when omitted; prices always come
// from the courses table, never from the client.
type CreateSessionRequest struct {
	Items      []CheckoutItem `json:"items" validate:"omitempty,dive"`
	CouponCode string         `json:"coupon_code" validate:"omitempty,min=2,max=50"`
}

// CheckoutItem names one course to purchase
type CheckoutItem struct {
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// ConfirmRequest represents the request body for confirming a paid session
type ConfirmRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CreateSession handles POST /api/v1/checkout
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	items, err := h.resolveItems(c, user, req.Items)
	if err != nil {
		return err // already an HTTP response
	}
	if len(items) == 0 {
		return response.BadRequest(c, "Your cart is empty")
	}

	courseIDs := make([]uint, 0, len(items))
	var total float64
	for _, item := range items {
		courseIDs = append(courseIDs, item.CourseID)
		total += item.Price
	}

	// The discount is computed server-side from the coupon at session time
	// and frozen into the session metadata.
	var discount float64
	if req.CouponCode != "" {
		quote, err := h.couponService.Apply(c.Context(), req.CouponCode, courseIDs, total)
		if err != nil {
			return couponError(c, err)
		}
		discount = quote.DiscountAmount
	}

	result, err := h.checkoutService.CreateSession(c.Context(), user, items, req.CouponCode, discount)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCart) {
			return response.BadRequest(c, "Your cart is empty")
		}
		if errors.Is(err, payment.ErrProvider) {
			return response.BadGateway(c, "Payment provider is unavailable")
		}
		return response.InternalServerError(c, "Failed to create checkout session")
	}
	return response.Success(c, result)
}

// Confirm handles POST /api/v1/checkout/confirm. Safe to call repeatedly
// with the same session id; replays return the original payment.
func (h *CheckoutHandler) Confirm(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	pay, err := h.checkoutService.Reconcile(c.Context(), req.SessionID, user)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotPaid):
			return response.BadRequest(c, "Payment has not been completed")
		case errors.Is(err, services.ErrBadSessionMeta):
			return response.BadRequest(c, "Checkout session is not recognized")
		case errors.Is(err, services.ErrNotSessionOwner):
			return response.Forbidden(c, "This checkout session belongs to another account")
		case errors.Is(err, payment.ErrProvider):
			return response.BadGateway(c, "Payment provider is unavailable")
		default:
			return response.InternalServerError(c, "Failed to confirm payment")
		}
	}
	return response.SuccessWithMessage(c, "Payment confirmed", pay)
}

// resolveItems turns the request into priced line items. Explicit items are
// looked up course by course; an empty list falls back to the user's cart.
func (h *CheckoutHandler) resolveItems(c *fiber.Ctx, user *model.User, requested []CheckoutItem) ([]services.LineItem, error) {
	if len(requested) == 0 {
		cartItems, err := h.cartService.List(c.Context(), services.CartActor{UserID: &user.ID})
		if err != nil {
			return nil, response.InternalServerError(c, "Failed to fetch cart")
		}
		items := make([]services.LineItem, 0, len(cartItems))
		for _, ci := range cartItems {
			items = append(items, services.LineItem{
				CourseID:     ci.CourseID,
				CourseTitle:  ci.Course.Title,
				Price:        ci.Price,
				InstructorID: ci.InstructorID,
			})
		}
		return items, nil
	}

	items := make([]services.LineItem, 0, len(requested))
	for _, r := range requested {
		var course model.Course
		if err := h.db.First(&course, r.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, response.NotFound(c, "Course not found")
			}
			return nil, response.InternalServerError(c, "Failed to fetch course")
		}
		items = append(items, services.LineItem{
			CourseID:     course.ID,
			CourseTitle:  course.Title,
			Price:        course.EffectivePrice(),
			InstructorID: course.InstructorID,
		})
	}
	return items, nil
}

func couponError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrCouponNotFound):
		return response.NotFound(c, "Coupon not found")
	case errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrCouponNotYetValid),
		errors.Is(err, services.ErrCouponUsageLimit),
		errors.Is(err, services.ErrCouponBelowMinimum),
		errors.Is(err, services.ErrCouponWrongCourses):
		return response.BadRequest(c, err.Error())
	default:
		return response.InternalServerError(c, "Coupon operation failed")
	}
}
