package cart

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"github.com/kodexa-lms/commerce-api/utils/validation"
	"gorm.io/gorm"
)

// CartHandler handles cart-related requests
type CartHandler struct {
	db          *gorm.DB
	validator   *validation.Validator
	cartService *services.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(db *gorm.DB, cartService *services.CartService) *CartHandler {
	return &CartHandler{
		db:          db,
		validator:   validation.NewValidator(),
		cartService: cartService,
	}
}

// AddToCartRequest represents the request body for adding a course to the cart
type AddToCartRequest struct {
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// MergeCartRequest represents the request body for merging a guest cart
type MergeCartRequest struct {
	GuestToken string `json:"guest_token" validate:"required,uuid4"`
}

// actor resolves the cart owner: the authenticated user if present,
// otherwise the guest token from the X-Guest-Token header or query string.
func actor(c *fiber.Ctx) services.CartActor {
	if user, ok := middleware.GetUser(c); ok && user != nil {
		return services.CartActor{UserID: &user.ID}
	}
	token := c.Get("X-Guest-Token")
	if token == "" {
		token = c.Query("guest_token")
	}
	return services.CartActor{GuestToken: token}
}

// AddToCart handles POST /api/v1/cart
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, req.CourseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}
	if course.Status != "active" {
		return response.BadRequest(c, "Course is not available for purchase")
	}

	// A signed-in user who already owns the course has nothing to buy.
	if user, ok := middleware.GetUser(c); ok && user != nil {
		var enrolled int64
		h.db.Model(&model.Enrollment{}).
			Where("user_id = ? AND course_id = ?", user.ID, course.ID).
			Count(&enrolled)
		if enrolled > 0 {
			return response.BadRequest(c, "You are already enrolled in this course")
		}
	}

	result, err := h.cartService.Add(c.Context(), actor(c), course.ID, course.EffectivePrice(), course.InstructorID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyInCart) {
			return response.Conflict(c, "Course is already in your cart")
		}
		return response.InternalServerError(c, "Failed to add course to cart")
	}

	data := fiber.Map{"item": result.Item}
	if result.GuestToken != "" {
		// The client must persist this token to keep its cart.
		data["guest_token"] = result.GuestToken
	}
	return response.Created(c, data)
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	items, err := h.cartService.List(c.Context(), actor(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch cart")
	}

	var total float64
	for _, item := range items {
		total += item.Price
	}

	return response.Success(c, fiber.Map{
		"items": items,
		"total": total,
		"count": len(items),
	})
}

// RemoveItem handles DELETE /api/v1/cart/:id
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid cart item ID")
	}

	// Only the owner may remove an item. A missing row is treated as already
	// removed, which keeps retries harmless.
	var item model.CartItem
	if err := h.db.First(&item, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.SuccessWithMessage(c, "Item removed from cart", nil)
		}
		return response.InternalServerError(c, "Failed to fetch cart item")
	}
	if !ownsItem(actor(c), &item) {
		return response.Forbidden(c, "This cart item belongs to someone else")
	}

	if err := h.cartService.Remove(c.Context(), uint(id)); err != nil {
		return response.InternalServerError(c, "Failed to remove cart item")
	}
	return response.SuccessWithMessage(c, "Item removed from cart", nil)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	if err := h.cartService.Clear(c.Context(), actor(c)); err != nil {
		return response.InternalServerError(c, "Failed to clear cart")
	}
	return response.SuccessWithMessage(c, "Cart cleared", nil)
}

// MergeCart handles POST /api/v1/cart/merge. Called after login to carry
// the anonymous cart over to the account.
func (h *CartHandler) MergeCart(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req MergeCartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.cartService.Merge(c.Context(), req.GuestToken, user.ID); err != nil {
		return response.InternalServerError(c, "Failed to merge cart")
	}

	items, err := h.cartService.List(c.Context(), services.CartActor{UserID: &user.ID})
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch cart")
	}
	return response.SuccessWithMessage(c, "Cart merged", fiber.Map{"items": items})
}

func ownsItem(a services.CartActor, item *model.CartItem) bool {
	if a.UserID != nil {
		return item.UserID != nil && *item.UserID == *a.UserID
	}
	return a.GuestToken != "" && item.GuestToken == a.GuestToken
}
