package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/gorm"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrCourseNotFree   = errors.New("course is not free")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrNotEnrolled     = errors.New("no enrollment for this course")
)

// EnrollmentService covers the enrollment paths that do not go through
// checkout: free-course opt-in, admin manual grants and the learner's own
// progress updates.
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// ListForUser returns the user's enrollments with course data.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

// EnrollFree grants access to a zero-priced course without an order.
func (s *EnrollmentService) EnrollFree(ctx context.Context, userID uint, courseID uint) (*model.Enrollment, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if course.EffectivePrice() > 0 {
		return nil, ErrCourseNotFree
	}

	return s.grant(ctx, userID, courseID)
}

// Grant is the admin manual-enrollment path; it skips the price check.
func (s *EnrollmentService) Grant(ctx context.Context, userID uint, courseID uint) (*model.Enrollment, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	return s.grant(ctx, userID, courseID)
}

func (s *EnrollmentService) grant(ctx context.Context, userID uint, courseID uint) (*model.Enrollment, error) {
	enrollment := model.Enrollment{
		UserID:   userID,
		CourseID: courseID,
		Status:   model.EnrollmentStatusActive,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("failed to create enrollment: %w", err)
		}

		err := tx.Model(&model.Course{}).Where("id = ?", courseID).
			UpdateColumn("total_enrollments", gorm.Expr("total_enrollments + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to bump enrollment counter: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &enrollment, nil
}

// CompleteLecture records a finished content unit and recomputes the
// percentage from the course's total lecture count. Progress never moves
// backwards: completing an already-completed lecture is a no-op, and the
// computed percentage only replaces a smaller one.
func (s *EnrollmentService) CompleteLecture(ctx context.Context, userID uint, courseID uint, lectureID string, totalLectures int) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	if enrollment.HasCompleted(lectureID) {
		return &enrollment, nil
	}

	enrollment.CompletedLectures = append(enrollment.CompletedLectures, lectureID)
	if totalLectures > 0 {
		progress := float64(len(enrollment.CompletedLectures)) / float64(totalLectures) * 100
		if progress > 100 {
			progress = 100
		}
		if progress > enrollment.Progress {
			enrollment.Progress = progress
		}
	}
	if enrollment.Progress >= 100 {
		enrollment.Status = model.EnrollmentStatusCompleted
	}

	if err := s.db.WithContext(ctx).Save(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	return &enrollment, nil
}
