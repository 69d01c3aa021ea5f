package instructor

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"github.com/kodexa-lms/commerce-api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InstructorHandler handles instructor dashboard requests
type InstructorHandler struct {
	db                *gorm.DB
	validator         *validation.Validator
	statsService      *services.StatsService
	withdrawalService *services.WithdrawalService
}

// NewInstructorHandler creates a new instructor handler
func NewInstructorHandler(db *gorm.DB, statsService *services.StatsService, withdrawalService *services.WithdrawalService) *InstructorHandler {
	return &InstructorHandler{
		db:                db,
		validator:         validation.NewValidator(),
		statsService:      statsService,
		withdrawalService: withdrawalService,
	}
}

// WithdrawalRequest represents the request body for requesting a payout
type WithdrawalRequest struct {
	Amount         float64                `json:"amount" validate:"required,gt=0"`
	Method         string                 `json:"method" validate:"required,oneof=bank_transfer paypal upi"`
	AccountDetails map[string]interface{} `json:"account_details" validate:"required"`
}

// Stats handles GET /api/v1/instructor/stats
func (h *InstructorHandler) Stats(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	stats, err := h.statsService.ForInstructor(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to build instructor stats")
	}
	return response.Success(c, stats)
}

// ListWithdrawals handles GET /api/v1/instructor/withdrawals
func (h *InstructorHandler) ListWithdrawals(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	withdrawals, err := h.withdrawalService.ListForInstructor(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch withdrawals")
	}
	return response.Success(c, withdrawals)
}

// RequestWithdrawal handles POST /api/v1/instructor/withdrawals
func (h *InstructorHandler) RequestWithdrawal(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	var req WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	details, err := json.Marshal(req.AccountDetails)
	if err != nil {
		return response.BadRequest(c, "Invalid account details")
	}

	withdrawal, err := h.withdrawalService.Request(c.Context(), user, req.Amount, req.Method, datatypes.JSON(details))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			return response.BadRequest(c, "Requested amount exceeds your available balance")
		}
		return response.InternalServerError(c, "Failed to create withdrawal request")
	}
	return response.Created(c, withdrawal)
}
