package enrollment

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"github.com/kodexa-lms/commerce-api/utils/response"
	"github.com/kodexa-lms/commerce-api/utils/validation"
	"gorm.io/gorm"
)

// EnrollmentHandler handles enrollment-related requests
type EnrollmentHandler struct {
	db                *gorm.DB
	validator         *validation.Validator
	enrollmentService *services.EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(db *gorm.DB, enrollmentService *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		db:                db,
		validator:         validation.NewValidator(),
		enrollmentService: enrollmentService,
	}
}

// ProgressRequest represents the request body for recording a finished lecture
type ProgressRequest struct {
	LectureID     string `json:"lecture_id" validate:"required,min=1,max=100"`
	TotalLectures int    `json:"total_lectures" validate:"required,min=1"`
}

// MyEnrollments handles GET /api/v1/enrollments/my
func (h *EnrollmentHandler) MyEnrollments(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	enrollments, err := h.enrollmentService.ListForUser(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollments")
	}
	return response.Success(c, enrollments)
}

// EnrollFree handles POST /api/v1/courses/:id/enroll. Only zero-priced
// courses can be joined this way; everything else goes through checkout.
func (h *EnrollmentHandler) EnrollFree(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollment, err := h.enrollmentService.EnrollFree(c.Context(), user.ID, uint(courseID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrCourseNotFree):
			return response.BadRequest(c, "This course requires purchase")
		case errors.Is(err, services.ErrAlreadyEnrolled):
			return response.Conflict(c, "You are already enrolled in this course")
		default:
			return response.InternalServerError(c, "Failed to enroll")
		}
	}
	return response.Created(c, enrollment)
}

// UpdateProgress handles PUT /api/v1/enrollments/:course_id/progress
func (h *EnrollmentHandler) UpdateProgress(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("course_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var req ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	enrollment, err := h.enrollmentService.CompleteLecture(c.Context(), user.ID, uint(courseID), req.LectureID, req.TotalLectures)
	if err != nil {
		if errors.Is(err, services.ErrNotEnrolled) {
			return response.NotFound(c, "You are not enrolled in this course")
		}
		return response.InternalServerError(c, "Failed to update progress")
	}
	return response.SuccessWithMessage(c, "Progress updated", enrollment)
}
