package services

import (
	"context"
	"testing"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsForInstructor(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0) // platform default 30%
	other := seedInstructor(t, f.db, "other@test.dev", 0)
	a := seedCourse(t, f.db, "Course A", 100, instructor.ID)
	b := seedCourse(t, f.db, "Course B", 50, instructor.ID)
	c := seedCourse(t, f.db, "Course C", 80, other.ID)

	f.buy(t, []LineItem{lineItem(a), lineItem(b)}, "", 0)
	second := seedUser(t, f.db, "second@test.dev", model.RoleStudent)
	f.buyer = second
	f.buy(t, []LineItem{lineItem(a), lineItem(c)}, "", 0)

	svc := NewStatsService(f.db)
	stats, err := svc.ForInstructor(context.Background(), instructor.ID)
	require.NoError(t, err)

	// Three settled orders at 70%: 70 + 35 + 70.
	assert.InDelta(t, 175, stats.TotalEarnings, 0.001)
	assert.InDelta(t, 175, stats.AvailableBalance, 0.001)
	assert.EqualValues(t, 2, stats.TotalStudents)
	assert.EqualValues(t, 2, stats.TotalCourses)

	require.Len(t, stats.CourseRevenue, 2)
	assert.Equal(t, "Course A", stats.CourseRevenue[0].Title)
	assert.EqualValues(t, 2, stats.CourseRevenue[0].Enrollments)
	assert.InDelta(t, 140, stats.CourseRevenue[0].Revenue, 0.001)
	assert.Equal(t, "Course B", stats.CourseRevenue[1].Title)

	require.Len(t, stats.MonthlyEarnings, 12)
	current := time.Now().UTC().Format("2006-01")
	last := stats.MonthlyEarnings[len(stats.MonthlyEarnings)-1]
	assert.Equal(t, current, last.Month)
	assert.InDelta(t, 175, last.Amount, 0.001)
}

func TestStatsForAdmin(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	a := seedCourse(t, f.db, "Course A", 100, instructor.ID)
	b := seedCourse(t, f.db, "Course B", 50, instructor.ID)
	admin := seedUser(t, f.db, "admin@test.dev", model.RoleAdmin)

	f.buy(t, []LineItem{lineItem(a), lineItem(b)}, "", 0)

	// Refund one of the two orders; refunded revenue leaves the totals.
	settlement := NewSettlementService(f.db)
	var refundable model.Order
	require.NoError(t, f.db.Where("course_id = ?", b.ID).First(&refundable).Error)
	require.NoError(t, settlement.Refund(context.Background(), refundable.ID, admin.ID))

	svc := NewStatsService(f.db)
	stats, err := svc.ForAdmin(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 100, stats.TotalRevenue, 0.001)
	assert.InDelta(t, 30, stats.PlatformEarnings, 0.001)
	assert.EqualValues(t, 2, stats.TotalOrders)
	assert.EqualValues(t, 1, stats.RefundedOrders)
	assert.EqualValues(t, 1, stats.TotalStudents)
	assert.EqualValues(t, 1, stats.TotalInstructors)

	require.Len(t, stats.TopCourses, 1)
	assert.Equal(t, "Course A", stats.TopCourses[0].Title)
	assert.InDelta(t, 100, stats.TopCourses[0].Revenue, 0.001)

	require.Len(t, stats.MonthlyRevenue, 12)
	last := stats.MonthlyRevenue[len(stats.MonthlyRevenue)-1]
	assert.InDelta(t, 100, last.Amount, 0.001)
}
