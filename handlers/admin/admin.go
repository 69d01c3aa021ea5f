package admin

import (
	"errors"
	"log"
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

// AdminHandler handles the admin commerce surface: platform stats, order
// refunds, withdrawal decisions and manual enrollment grants.
type AdminHandler struct {
	db                *gorm.DB
	validator         *validation.Validator
	statsService      *services.StatsService
	settlementService *services.SettlementService
	withdrawalService *services.WithdrawalService
	enrollmentService *services.EnrollmentService
	emailService      *services.EmailService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, statsService *services.StatsService, settlementService *services.SettlementService, withdrawalService *services.WithdrawalService, enrollmentService *services.EnrollmentService, emailService *services.EmailService) *AdminHandler {
	return &AdminHandler{
		db:                db,
		validator:         validation.NewValidator(),
		statsService:      statsService,
		settlementService: settlementService,
		withdrawalService: withdrawalService,
		enrollmentService: enrollmentService,
		emailService:      emailService,
	}
}

// ProcessWithdrawalRequest represents the request body for a payout decision
type ProcessWithdrawalRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected completed"`
	Note   string `json:"note" validate:"omitempty,max=1000"`
}

// GrantEnrollmentRequest represents the request body for a manual enrollment
type GrantEnrollmentRequest struct {
	UserID   uint `json:"user_id" validate:"required,min=1"`
	CourseID uint `json:"course_id" validate:"required,min=1"`
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.statsService.ForAdmin(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to build platform stats")
	}
	return response.Success(c, stats)
}

// ListOrders handles GET /api/v1/admin/orders with optional date filters
// (from/to, RFC3339 or YYYY-MM-DD) and pagination.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.Order{})

	if from := c.Query("from"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			return response.BadRequest(c, "Invalid 'from' date")
		}
		query = query.Where("created_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			return response.BadRequest(c, "Invalid 'to' date")
		}
		query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

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

// RefundOrder handles POST /api/v1/admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *fiber.Ctx) error {
	admin, ok := middleware.GetUser(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid order ID")
	}

	if err := h.settlementService.Refund(c.Context(), uint(id), admin.ID); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			return response.NotFound(c, "Order not found")
		case errors.Is(err, services.ErrAlreadyRefunded):
			return response.Conflict(c, "Order has already been refunded")
		default:
			return response.InternalServerError(c, "Failed to refund order")
		}
	}
	return response.SuccessWithMessage(c, "Order refunded", nil)
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals
func (h *AdminHandler) ListWithdrawals(c *fiber.Ctx) error {
	withdrawals, err := h.withdrawalService.ListAll(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch withdrawals")
	}
	return response.Success(c, withdrawals)
}

// ProcessWithdrawal handles PUT /api/v1/admin/withdrawals/:id
func (h *AdminHandler) ProcessWithdrawal(c *fiber.Ctx) error {
	admin, ok := middleware.GetUser(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid withdrawal ID")
	}

	var req ProcessWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	withdrawal, err := h.withdrawalService.Process(c.Context(), uint(id), req.Status, req.Note, admin.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrWithdrawalNotFound):
			return response.NotFound(c, "Withdrawal not found")
		case errors.Is(err, services.ErrWithdrawalProcessed):
			return response.Conflict(c, "Withdrawal has already been processed")
		case errors.Is(err, services.ErrInvalidWithdrawalMove):
			return response.BadRequest(c, "Invalid withdrawal status")
		default:
			return response.InternalServerError(c, "Failed to process withdrawal")
		}
	}

	if withdrawal.IsTerminal() && h.emailService != nil {
		var instructor model.User
		if err := h.db.First(&instructor, withdrawal.InstructorID).Error; err == nil {
			go func(email, name, status string, amount float64) {
				if err := h.emailService.SendWithdrawalDecision(email, name, status, amount); err != nil {
					log.Printf("withdrawal email failed for %s: %v", email, err)
				}
			}(instructor.Email, instructor.Name, withdrawal.Status, withdrawal.Amount)
		}
	}

	return response.SuccessWithMessage(c, "Withdrawal processed", withdrawal)
}

// GrantEnrollment handles POST /api/v1/admin/enrollments
func (h *AdminHandler) GrantEnrollment(c *fiber.Ctx) error {
	admin, ok := middleware.GetUser(c)
	if !ok || admin == nil {
		return response.Unauthorized(c, "")
	}

	var req GrantEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	enrollment, err := h.enrollmentService.Grant(c.Context(), req.UserID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrAlreadyEnrolled):
			return response.Conflict(c, "User is already enrolled in this course")
		default:
			return response.InternalServerError(c, "Failed to grant enrollment")
		}
	}

	audit := model.AdminAuditLog{
		AdminID:     admin.ID,
		Action:      "enrollment_grant",
		Resource:    "enrollments",
		ResourceID:  enrollment.ID,
		Description: "manual enrollment granted by admin",
	}
	h.db.Create(&audit)

	return response.Created(c, enrollment)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
