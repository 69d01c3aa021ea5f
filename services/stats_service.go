package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"gorm.io/gorm"
)

// InstructorStats is the dashboard summary for a single instructor.
type InstructorStats struct {
	TotalEarnings    float64         `json:"total_earnings"`
	AvailableBalance float64         `json:"available_balance"`
	TotalStudents    int64           `json:"total_students"`
	TotalCourses     int64           `json:"total_courses"`
	CourseRevenue    []CourseRevenue `json:"course_revenue"`
	MonthlyEarnings  []MonthlyAmount `json:"monthly_earnings"`
}

// AdminStats is the platform-wide dashboard summary.
type AdminStats struct {
	TotalRevenue     float64         `json:"total_revenue"`
	PlatformEarnings float64         `json:"platform_earnings"`
	TotalOrders      int64           `json:"total_orders"`
	RefundedOrders   int64           `json:"refunded_orders"`
	TotalStudents    int64           `json:"total_students"`
	TotalInstructors int64           `json:"total_instructors"`
	MonthlyRevenue   []MonthlyAmount `json:"monthly_revenue"`
	TopCourses       []CourseRevenue `json:"top_courses"`
}

// CourseRevenue aggregates completed-order revenue per course.
type CourseRevenue struct {
	CourseID    uint    `json:"course_id"`
	Title       string  `json:"title"`
	Enrollments int64   `json:"enrollments"`
	Revenue     float64 `json:"revenue"`
}

// MonthlyAmount is one month's aggregate, keyed "YYYY-MM".
type MonthlyAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// StatsService serves the instructor and admin dashboard aggregates.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// ForInstructor builds the dashboard summary for one instructor.
func (s *StatsService) ForInstructor(ctx context.Context, instructorID uint) (*InstructorStats, error) {
	stats := &InstructorStats{}

	var instructor model.User
	if err := s.db.WithContext(ctx).First(&instructor, instructorID).Error; err != nil {
		return nil, fmt.Errorf("failed to load instructor: %w", err)
	}
	stats.TotalEarnings = instructor.TotalEarnings
	stats.AvailableBalance = instructor.AvailableBalance

	err := s.db.WithContext(ctx).Model(&model.Course{}).
		Where("instructor_id = ?", instructorID).
		Count(&stats.TotalCourses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&model.Order{}).
		Where("instructor_id = ? AND status = ?", instructorID, model.OrderStatusCompleted).
		Distinct("user_id").
		Count(&stats.TotalStudents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&model.Order{}).
		Select("orders.course_id, courses.title, COUNT(*) AS enrollments, SUM(orders.instructor_earning) AS revenue").
		Joins("JOIN courses ON courses.id = orders.course_id").
		Where("orders.instructor_id = ? AND orders.status = ?", instructorID, model.OrderStatusCompleted).
		Group("orders.course_id, courses.title").
		Order("revenue DESC").
		Scan(&stats.CourseRevenue).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate course revenue: %w", err)
	}

	monthly, err := s.monthlyAmounts(ctx, func(o *model.Order) float64 { return o.InstructorEarning },
		"instructor_id = ? AND status = ?", instructorID, model.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	stats.MonthlyEarnings = monthly

	return stats, nil
}

// ForAdmin builds the platform-wide dashboard summary.
func (s *StatsService) ForAdmin(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}

	type totals struct {
		Revenue  float64
		Platform float64
	}
	var t totals
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Select("COALESCE(SUM(price), 0) AS revenue, COALESCE(SUM(platform_earning), 0) AS platform").
		Where("status = ?", model.OrderStatusCompleted).
		Scan(&t).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	stats.TotalRevenue = t.Revenue
	stats.PlatformEarnings = t.Platform

	if err := s.db.WithContext(ctx).Model(&model.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&model.Order{}).
		Where("status = ?", model.OrderStatusRefunded).
		Count(&stats.RefundedOrders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&model.User{}).
		Where("role = ?", model.RoleStudent).Count(&stats.TotalStudents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&model.User{}).
		Where("role = ?", model.RoleInstructor).Count(&stats.TotalInstructors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count instructors: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&model.Order{}).
		Select("orders.course_id, courses.title, COUNT(*) AS enrollments, SUM(orders.price) AS revenue").
		Joins("JOIN courses ON courses.id = orders.course_id").
		Where("orders.status = ?", model.OrderStatusCompleted).
		Group("orders.course_id, courses.title").
		Order("revenue DESC").
		Limit(10).
		Scan(&stats.TopCourses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top courses: %w", err)
	}

	monthly, err := s.monthlyAmounts(ctx, func(o *model.Order) float64 { return o.Price },
		"status = ?", model.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	stats.MonthlyRevenue = monthly

	return stats, nil
}

// monthlyAmounts buckets the last 12 months of matching orders in memory.
// Month extraction differs across SQL dialects, so the grouping stays in Go.
func (s *StatsService) monthlyAmounts(ctx context.Context, amount func(*model.Order) float64, query string, args ...interface{}) ([]MonthlyAmount, error) {
	since := time.Now().AddDate(0, -11, 0)
	since = time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)

	var orders []model.Order
	err := s.db.WithContext(ctx).
		Where(query, args...).
		Where("created_at >= ?", since).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for monthly aggregate: %w", err)
	}

	buckets := make(map[string]float64)
	for i := range orders {
		key := orders[i].CreatedAt.UTC().Format("2006-01")
		buckets[key] += amount(&orders[i])
	}

	out := make([]MonthlyAmount, 0, 12)
	for m := since; !m.After(time.Now()); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		out = append(out, MonthlyAmount{Month: key, Amount: buckets[key]})
	}
	return out, nil
}
