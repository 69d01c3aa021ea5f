package cron

import (
	"fmt"
	"log"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
)

// ReconcileCourseCounters recomputes total_enrollments and total_revenue for
// every course from the orders and enrollments tables. The hot path keeps
// these counters with atomic increments; this job repairs any drift left by
// crashes between a write and its counter bump.
func (m *CronManager) ReconcileCourseCounters() {
	jobName := "reconcile_counters"

	var courses []model.Course
	if err := m.db.Find(&courses).Error; err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query courses: %w", err))
		return
	}

	repaired := 0
	for _, course := range courses {
		var enrollments int64
		err := m.db.Model(&model.Enrollment{}).
			Where("course_id = ?", course.ID).
			Count(&enrollments).Error
		if err != nil {
			log.Printf("[CRON] Failed to count enrollments for course %d: %v", course.ID, err)
			continue
		}

		// total_revenue counts the full order price; the commission split only
		// matters for instructor earnings.
		var revenue float64
		err = m.db.Model(&model.Order{}).
			Select("COALESCE(SUM(price), 0)").
			Where("course_id = ? AND status = ?", course.ID, model.OrderStatusCompleted).
			Scan(&revenue).Error
		if err != nil {
			log.Printf("[CRON] Failed to sum revenue for course %d: %v", course.ID, err)
			continue
		}

		if course.TotalEnrollments == int(enrollments) && course.TotalRevenue == revenue {
			continue
		}

		err = m.db.Model(&model.Course{}).Where("id = ?", course.ID).
			Updates(map[string]interface{}{
				"total_enrollments": enrollments,
				"total_revenue":     revenue,
			}).Error
		if err != nil {
			log.Printf("[CRON] Failed to repair counters for course %d: %v", course.ID, err)
			continue
		}
		repaired++
	}

	instructorsRepaired, err := m.reconcileInstructorEarnings()
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Checked %d courses, repaired %d, repaired %d instructor earnings", len(courses), repaired, instructorsRepaired))
}

// reconcileInstructorEarnings recomputes total_earnings per instructor from
// non-refunded orders. AvailableBalance is left alone: withdrawals debit it
// independently of earnings, so orders alone cannot reproduce it.
func (m *CronManager) reconcileInstructorEarnings() (int, error) {
	var instructors []model.User
	if err := m.db.Where("role = ?", model.RoleInstructor).Find(&instructors).Error; err != nil {
		return 0, fmt.Errorf("failed to query instructors: %w", err)
	}

	repaired := 0
	for _, instructor := range instructors {
		var earnings float64
		err := m.db.Model(&model.Order{}).
			Select("COALESCE(SUM(instructor_earning), 0)").
			Where("instructor_id = ? AND status = ?", instructor.ID, model.OrderStatusCompleted).
			Scan(&earnings).Error
		if err != nil {
			log.Printf("[CRON] Failed to sum earnings for instructor %d: %v", instructor.ID, err)
			continue
		}

		if instructor.TotalEarnings == earnings {
			continue
		}

		err = m.db.Model(&model.User{}).Where("id = ?", instructor.ID).
			UpdateColumn("total_earnings", earnings).Error
		if err != nil {
			log.Printf("[CRON] Failed to repair earnings for instructor %d: %v", instructor.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// CleanupGuestCarts removes guest cart rows older than 30 days. Guest carts
// have no owner to come back for them; anything this old is abandoned.
func (m *CronManager) CleanupGuestCarts() {
	jobName := "cleanup_guest_carts"

	cutoff := time.Now().AddDate(0, 0, -30)

	result := m.db.
		Where("guest_token <> '' AND user_id IS NULL AND created_at < ?", cutoff).
		Delete(&model.CartItem{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete stale guest carts: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Deleted %d stale guest cart items", result.RowsAffected))
}
