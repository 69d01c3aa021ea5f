package services

import (
	"context"
	"testing"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settleOneOrder(t *testing.T, f *checkoutFixture, price float64, commissionRate float64) model.Order {
	t.Helper()
	instructor := seedInstructor(t, f.db, "inst@test.dev", commissionRate)
	course := seedCourse(t, f.db, "Course", price, instructor.ID)
	pay := f.buy(t, []LineItem{lineItem(course)}, "", 0)

	var order model.Order
	require.NoError(t, f.db.Where("payment_id = ?", pay.ID).First(&order).Error)
	return order
}

func TestRefundReversesSettlement(t *testing.T) {
	f := newCheckoutFixture(t)
	admin := seedUser(t, f.db, "admin@test.dev", model.RoleAdmin)
	order := settleOneOrder(t, f, 100, 0) // default split 70/30

	svc := NewSettlementService(f.db)
	require.NoError(t, svc.Refund(context.Background(), order.ID, admin.ID))

	var gotOrder model.Order
	require.NoError(t, f.db.First(&gotOrder, order.ID).Error)
	assert.Equal(t, model.OrderStatusRefunded, gotOrder.Status)

	var pay model.Payment
	require.NoError(t, f.db.First(&pay, order.PaymentID).Error)
	assert.Equal(t, model.PaymentStatusRefunded, pay.Status)
	assert.NotNil(t, pay.RefundedAt)

	// Access revoked outright.
	var enrollments int64
	f.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", order.UserID, order.CourseID).
		Count(&enrollments)
	assert.Zero(t, enrollments)

	// Counters and balances back to their pre-sale values.
	var course model.Course
	require.NoError(t, f.db.First(&course, order.CourseID).Error)
	assert.Zero(t, course.TotalEnrollments)
	assert.Zero(t, course.TotalRevenue)

	var instructor model.User
	require.NoError(t, f.db.First(&instructor, order.InstructorID).Error)
	assert.Zero(t, instructor.TotalEarnings)
	assert.Zero(t, instructor.AvailableBalance)

	// The money movement is audited.
	var audits int64
	f.db.Model(&model.AdminAuditLog{}).
		Where("action = ? AND resource_id = ?", "order_refund", order.ID).
		Count(&audits)
	assert.EqualValues(t, 1, audits)
}

func TestRefundTwiceRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	admin := seedUser(t, f.db, "admin@test.dev", model.RoleAdmin)
	order := settleOneOrder(t, f, 100, 0)

	svc := NewSettlementService(f.db)
	require.NoError(t, svc.Refund(context.Background(), order.ID, admin.ID))
	err := svc.Refund(context.Background(), order.ID, admin.ID)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	// The balance was only debited once.
	var instructor model.User
	require.NoError(t, f.db.First(&instructor, order.InstructorID).Error)
	assert.Zero(t, instructor.AvailableBalance)
}

func TestRefundUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	err := svc.Refund(context.Background(), 12345, 1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// A refund after the instructor already withdrew the earning drives the
// balance negative. The debt is recorded, not clamped.
func TestRefundAfterWithdrawalGoesNegative(t *testing.T) {
	f := newCheckoutFixture(t)
	admin := seedUser(t, f.db, "admin@test.dev", model.RoleAdmin)
	order := settleOneOrder(t, f, 100, 0) // instructor earned 70

	var instructor model.User
	require.NoError(t, f.db.First(&instructor, order.InstructorID).Error)
	require.Equal(t, 70.0, instructor.AvailableBalance)

	withdrawals := NewWithdrawalService(f.db)
	w, err := withdrawals.Request(context.Background(), &instructor, 70, "bank_transfer", nil)
	require.NoError(t, err)
	_, err = withdrawals.Process(context.Background(), w.ID, model.WithdrawalStatusCompleted, "", admin.ID)
	require.NoError(t, err)

	settlement := NewSettlementService(f.db)
	require.NoError(t, settlement.Refund(context.Background(), order.ID, admin.ID))

	require.NoError(t, f.db.First(&instructor, order.InstructorID).Error)
	assert.Equal(t, -70.0, instructor.AvailableBalance)
	assert.Zero(t, instructor.TotalEarnings)
}

// Refund of one line leaves the sibling lines of the same payment intact.
func TestRefundSingleLineOfMultiCoursePayment(t *testing.T) {
	f := newCheckoutFixture(t)
	admin := seedUser(t, f.db, "admin@test.dev", model.RoleAdmin)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	courseA := seedCourse(t, f.db, "Course A", 100, instructor.ID)
	courseB := seedCourse(t, f.db, "Course B", 50, instructor.ID)

	pay := f.buy(t, []LineItem{lineItem(courseA), lineItem(courseB)}, "", 0)

	var orders []model.Order
	require.NoError(t, f.db.Where("payment_id = ?", pay.ID).Order("id ASC").Find(&orders).Error)
	require.Len(t, orders, 2)

	svc := NewSettlementService(f.db)
	require.NoError(t, svc.Refund(context.Background(), orders[0].ID, admin.ID))

	var refunded, kept model.Order
	require.NoError(t, f.db.First(&refunded, orders[0].ID).Error)
	require.NoError(t, f.db.First(&kept, orders[1].ID).Error)
	assert.Equal(t, model.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, model.OrderStatusCompleted, kept.Status)

	// Enrollment for the kept course survives.
	var enrollments int64
	f.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", f.buyer.ID, courseB.ID).
		Count(&enrollments)
	assert.EqualValues(t, 1, enrollments)

	var gotInstructor model.User
	require.NoError(t, f.db.First(&gotInstructor, instructor.ID).Error)
	assert.Equal(t, 35.0, gotInstructor.AvailableBalance, "only course B's 70% remains")
}
