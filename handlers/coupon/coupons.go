package coupon

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"github.com/kodexa-lms/commerce-api/utils/validation"
	"gorm.io/gorm"
)

// CouponHandler handles coupon-related requests
type CouponHandler struct {
	db            *gorm.DB
	validator     *validation.Validator
	couponService *services.CouponService
	cartService   *services.CartService
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(db *gorm.DB, couponService *services.CouponService, cartService *services.CartService) *CouponHandler {
	return &CouponHandler{
		db:            db,
		validator:     validation.NewValidator(),
		couponService: couponService,
		cartService:   cartService,
	}
}

// ApplyCouponRequest represents the request body for previewing a coupon
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,min=2,max=50"`
}

// CouponRequest represents the request body for creating or updating a coupon
type CouponRequest struct {
	Code              string    `json:"code" validate:"required,min=2,max=50"`
	DiscountType      string    `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue     float64   `json:"discount_value" validate:"required,gt=0"`
	MaxUses           int       `json:"max_uses" validate:"gte=0"`
	ValidFrom         time.Time `json:"valid_from" validate:"required"`
	ValidUntil        time.Time `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	CourseIDs         []uint    `json:"course_ids" validate:"omitempty,dive,min=1"`
	MinPurchaseAmount float64   `json:"min_purchase_amount" validate:"gte=0"`
	Active            *bool     `json:"active"`
}

// ApplyCoupon handles POST /api/v1/coupons/apply. The quote is advisory:
// nothing is consumed until checkout reconciliation redeems the code.
func (h *CouponHandler) ApplyCoupon(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req ApplyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	items, err := h.cartService.List(c.Context(), services.CartActor{UserID: &user.ID})
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch cart")
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

	quote, err := h.couponService.Apply(c.Context(), req.Code, courseIDs, total)
	if err != nil {
		return couponError(c, err)
	}
	return response.Success(c, quote)
}

// ListCoupons handles GET /api/v1/coupons
func (h *CouponHandler) ListCoupons(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	coupons, err := h.couponService.ListForInstructor(c.Context(), user)
	if err != nil {
		return response.InternalServerError(c, "Failed to list coupons")
	}
	return response.Success(c, coupons)
}

// CreateCoupon handles POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.DiscountType == model.DiscountPercentage && req.DiscountValue > 100 {
		return response.BadRequest(c, "Percentage discount cannot exceed 100")
	}

	coupon := couponFromRequest(&req)
	if user.Role != model.RoleAdmin {
		// Instructors may only scope coupons to their own courses.
		coupon.InstructorID = &user.ID
		if err := h.checkCourseOwnership(c, user.ID, req.CourseIDs); err != nil {
			return response.Forbidden(c, err.Error())
		}
	}

	if err := h.couponService.Create(c.Context(), coupon); err != nil {
		return response.BadRequest(c, err.Error())
	}
	return response.Created(c, coupon)
}

// UpdateCoupon handles PUT /api/v1/coupons/:id
func (h *CouponHandler) UpdateCoupon(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid coupon ID")
	}

	existing, err := h.couponService.Get(c.Context(), uint(id), user)
	if err != nil {
		return couponError(c, err)
	}

	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.DiscountType == model.DiscountPercentage && req.DiscountValue > 100 {
		return response.BadRequest(c, "Percentage discount cannot exceed 100")
	}
	if user.Role != model.RoleAdmin {
		if err := h.checkCourseOwnership(c, user.ID, req.CourseIDs); err != nil {
			return response.Forbidden(c, err.Error())
		}
	}

	updated := couponFromRequest(&req)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UsedCount = existing.UsedCount
	updated.InstructorID = existing.InstructorID

	if err := h.couponService.Update(c.Context(), updated); err != nil {
		return response.InternalServerError(c, "Failed to update coupon")
	}
	return response.SuccessWithMessage(c, "Coupon updated", updated)
}

// DeleteCoupon handles DELETE /api/v1/coupons/:id
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid coupon ID")
	}

	if err := h.couponService.Delete(c.Context(), uint(id), user); err != nil {
		return couponError(c, err)
	}
	return response.SuccessWithMessage(c, "Coupon deleted", nil)
}

func (h *CouponHandler) checkCourseOwnership(c *fiber.Ctx, instructorID uint, courseIDs []uint) error {
	if len(courseIDs) == 0 {
		return nil
	}
	var count int64
	err := h.db.Model(&model.Course{}).
		Where("id IN ? AND instructor_id = ?", courseIDs, instructorID).
		Count(&count).Error
	if err != nil {
		return errors.New("failed to verify course ownership")
	}
	if count != int64(len(courseIDs)) {
		return errors.New("coupon can only cover your own courses")
	}
	return nil
}

func couponFromRequest(req *CouponRequest) *model.Coupon {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &model.Coupon{
		Code:              req.Code,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MaxUses:           req.MaxUses,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		CourseIDs:         req.CourseIDs,
		MinPurchaseAmount: req.MinPurchaseAmount,
		Active:            active,
	}
}

// couponError maps coupon service failures onto HTTP responses.
func couponError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrCouponNotFound):
		return response.NotFound(c, "Coupon not found")
	case errors.Is(err, services.ErrCouponNotOwned):
		return response.Forbidden(c, "This coupon belongs to another instructor")
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
