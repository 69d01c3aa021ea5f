package order

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"gorm.io/gorm"
)

// OrderHandler handles order-related requests
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// MyOrders handles GET /api/v1/orders/my
func (h *OrderHandler) MyOrders(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	query := h.db.Model(&model.Order{}).Where("user_id = ?", user.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count orders")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var orders []model.Order
	err := query.Preload("Course").Preload("Payment").
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch orders")
	}

	return response.Paginated(c, orders, pagination)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid order ID")
	}

	var order model.Order
	err = h.db.Preload("Course").Preload("Payment").First(&order, uint(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Order not found")
		}
		return response.InternalServerError(c, "Failed to fetch order")
	}

	if order.UserID != user.ID && user.Role != model.RoleAdmin {
		return response.Forbidden(c, "You do not have access to this order")
	}

	return response.Success(c, order)
}
