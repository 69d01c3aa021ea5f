package services

import (
	"context"
	"testing"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type checkoutFixture struct {
	db       *gorm.DB
	provider *payment.FakeProvider
	coupons  *CouponService
	svc      *CheckoutService
	buyer    *model.User
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)
	provider := payment.NewFakeProvider()
	coupons := NewCouponService(db)
	svc := NewCheckoutService(db, provider, coupons, nil, nil)
	buyer := seedUser(t, db, "buyer@test.dev", model.RoleStudent)
	return &checkoutFixture{db: db, provider: provider, coupons: coupons, svc: svc, buyer: buyer}
}

func lineItem(course *model.Course) LineItem {
	return LineItem{
		CourseID:     course.ID,
		CourseTitle:  course.Title,
		Price:        course.Price,
		InstructorID: course.InstructorID,
	}
}

// buy opens a session for the items, marks it paid and reconciles it.
func (f *checkoutFixture) buy(t *testing.T, items []LineItem, couponCode string, discount float64) *model.Payment {
	t.Helper()
	result, err := f.svc.CreateSession(context.Background(), f.buyer, items, couponCode, discount)
	require.NoError(t, err)
	f.provider.MarkPaid(result.SessionID, discount)
	pay, err := f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
	require.NoError(t, err)
	return pay
}

func TestCheckoutSessionHasNoDurableEffects(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	result, err := f.svc.CreateSession(context.Background(), f.buyer, []LineItem{lineItem(course)}, "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
	assert.NotEmpty(t, result.SessionID)

	// Phase A writes nothing durable: abandoning here leaves no trace.
	var payments, orders, enrollments int64
	f.db.Model(&model.Payment{}).Count(&payments)
	f.db.Model(&model.Order{}).Count(&orders)
	f.db.Model(&model.Enrollment{}).Count(&enrollments)
	assert.Zero(t, payments)
	assert.Zero(t, orders)
	assert.Zero(t, enrollments)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.CreateSession(context.Background(), f.buyer, nil, "", 0)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestReconcileRejectsForeignSession(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)
	intruder := seedUser(t, f.db, "intruder@test.dev", model.RoleStudent)

	result, err := f.svc.CreateSession(context.Background(), f.buyer, []LineItem{lineItem(course)}, "", 0)
	require.NoError(t, err)
	f.provider.MarkPaid(result.SessionID, 0)

	// Another signed-in user replaying the session id must settle nothing.
	_, err = f.svc.Reconcile(context.Background(), result.SessionID, intruder)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	var payments int64
	f.db.Model(&model.Payment{}).Count(&payments)
	assert.Zero(t, payments)

	// The rightful buyer still settles normally.
	pay, err := f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, f.buyer.ID, pay.UserID)
	assert.Equal(t, f.buyer.Email, pay.Email)

	// And a post-settlement replay by the other user hits the same wall
	// instead of receiving the buyer's payment.
	_, err = f.svc.Reconcile(context.Background(), result.SessionID, intruder)
	assert.ErrorIs(t, err, ErrNotSessionOwner)
}

func TestReconcileSettlesEverything(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0) // platform default 30%
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	pay := f.buy(t, []LineItem{lineItem(course)}, "", 0)

	assert.Equal(t, model.PaymentStatusCompleted, pay.Status)
	assert.Equal(t, 100.0, pay.TotalAmount)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{6}$`, pay.InvoiceNo)

	var order model.Order
	require.NoError(t, f.db.Where("payment_id = ?", pay.ID).First(&order).Error)
	assert.Equal(t, 100.0, order.Price)
	assert.Equal(t, 30.0, order.CommissionRate)
	assert.Equal(t, 30.0, order.PlatformEarning)
	assert.Equal(t, 70.0, order.InstructorEarning)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)

	var enrollment model.Enrollment
	require.NoError(t, f.db.Where("user_id = ? AND course_id = ?", f.buyer.ID, course.ID).First(&enrollment).Error)
	assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)

	var gotCourse model.Course
	require.NoError(t, f.db.First(&gotCourse, course.ID).Error)
	assert.Equal(t, 1, gotCourse.TotalEnrollments)
	assert.Equal(t, 100.0, gotCourse.TotalRevenue)

	var gotInstructor model.User
	require.NoError(t, f.db.First(&gotInstructor, instructor.ID).Error)
	assert.Equal(t, 70.0, gotInstructor.TotalEarnings)
	assert.Equal(t, 70.0, gotInstructor.AvailableBalance)
}

func TestReconcileIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	result, err := f.svc.CreateSession(context.Background(), f.buyer, []LineItem{lineItem(course)}, "", 0)
	require.NoError(t, err)
	f.provider.MarkPaid(result.SessionID, 0)

	first, err := f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
	require.NoError(t, err)

	// Redelivered confirmations return the original payment untouched.
	for i := 0; i < 3; i++ {
		again, err := f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}

	var payments, orders, enrollments int64
	f.db.Model(&model.Payment{}).Count(&payments)
	f.db.Model(&model.Order{}).Count(&orders)
	f.db.Model(&model.Enrollment{}).Count(&enrollments)
	assert.EqualValues(t, 1, payments)
	assert.EqualValues(t, 1, orders)
	assert.EqualValues(t, 1, enrollments)

	var gotInstructor model.User
	require.NoError(t, f.db.First(&gotInstructor, instructor.ID).Error)
	assert.Equal(t, 70.0, gotInstructor.AvailableBalance, "replay never double-credits")
}

func TestReconcileUnpaidSession(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	result, err := f.svc.CreateSession(context.Background(), f.buyer, []LineItem{lineItem(course)}, "", 0)
	require.NoError(t, err)

	_, err = f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
	assert.ErrorIs(t, err, ErrNotPaid)
}

func TestReconcileProviderDown(t *testing.T) {
	f := newCheckoutFixture(t)
	f.provider.Fail = true
	_, err := f.svc.Reconcile(context.Background(), "cs_test_1", f.buyer)
	assert.ErrorIs(t, err, payment.ErrProvider)
}

func TestSplitInvariantAcrossRates(t *testing.T) {
	f := newCheckoutFixture(t)
	defaultRate := seedInstructor(t, f.db, "default@test.dev", 0)
	negotiated := seedInstructor(t, f.db, "negotiated@test.dev", 20)
	premium := seedInstructor(t, f.db, "premium@test.dev", 41.5)

	courses := []*model.Course{
		seedCourse(t, f.db, "Default Rate", 99.99, defaultRate.ID),
		seedCourse(t, f.db, "Negotiated Rate", 59.49, negotiated.ID),
		seedCourse(t, f.db, "Premium Rate", 150, premium.ID),
	}
	items := make([]LineItem, 0, len(courses))
	for _, c := range courses {
		items = append(items, lineItem(c))
	}

	pay := f.buy(t, items, "", 0)

	var orders []model.Order
	require.NoError(t, f.db.Where("payment_id = ?", pay.ID).Order("id ASC").Find(&orders).Error)
	require.Len(t, orders, 3)

	wantRates := []float64{30, 20, 41.5}
	for i, order := range orders {
		assert.Equal(t, wantRates[i], order.CommissionRate)
		assert.InDelta(t, order.Price, order.InstructorEarning+order.PlatformEarning, 0.001,
			"earnings must sum to the line price")
	}
}

func TestCheckoutWithCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 50, instructor.ID)
	seedCoupon(t, f.db, &model.Coupon{
		Code:          "SAVE20",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: 20,
		MaxUses:       10,
	})

	quote, err := f.coupons.Apply(context.Background(), "SAVE20", []uint{course.ID}, 50)
	require.NoError(t, err)
	require.Equal(t, 10.0, quote.DiscountAmount)

	pay := f.buy(t, []LineItem{lineItem(course)}, "SAVE20", quote.DiscountAmount)

	// The payment carries the discounted charge; the order keeps the
	// pre-discount line price.
	assert.Equal(t, 40.0, pay.TotalAmount)
	assert.Equal(t, "SAVE20", pay.CouponCode)
	assert.Equal(t, 10.0, pay.DiscountAmount)

	var order model.Order
	require.NoError(t, f.db.Where("payment_id = ?", pay.ID).First(&order).Error)
	assert.Equal(t, 50.0, order.Price)

	var coupon model.Coupon
	require.NoError(t, f.db.Where("code = ?", "SAVE20").First(&coupon).Error)
	assert.Equal(t, 1, coupon.UsedCount, "redemption happens exactly once")

	var redemptions int64
	f.db.Model(&model.CouponRedemption{}).Where("coupon_id = ?", coupon.ID).Count(&redemptions)
	assert.EqualValues(t, 1, redemptions)
}

func TestRepurchasePreservesProgress(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	f.buy(t, []LineItem{lineItem(course)}, "", 0)

	// The learner makes progress, then a refund-less re-purchase happens
	// (e.g. a second confirmed session for the same course).
	require.NoError(t, f.db.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", f.buyer.ID, course.ID).
		UpdateColumn("progress", 40).Error)

	f.buy(t, []LineItem{lineItem(course)}, "", 0)

	var enrollment model.Enrollment
	require.NoError(t, f.db.Where("user_id = ? AND course_id = ?", f.buyer.ID, course.ID).First(&enrollment).Error)
	assert.Equal(t, 40.0, enrollment.Progress, "re-purchase must not reset progress")

	var enrollments int64
	f.db.Model(&model.Enrollment{}).Where("user_id = ?", f.buyer.ID).Count(&enrollments)
	assert.EqualValues(t, 1, enrollments)
}

func TestReconcileClearsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)

	carts := NewCartService(f.db)
	_, err := carts.Add(context.Background(), CartActor{UserID: &f.buyer.ID}, course.ID, 100, instructor.ID)
	require.NoError(t, err)

	f.buy(t, []LineItem{lineItem(course)}, "", 0)

	items, err := carts.List(context.Background(), CartActor{UserID: &f.buyer.ID})
	require.NoError(t, err)
	assert.Empty(t, items, "settlement clears the buyer's cart")
}

func TestReconcileCouponCapFailsWholeSettlement(t *testing.T) {
	f := newCheckoutFixture(t)
	instructor := seedInstructor(t, f.db, "inst@test.dev", 0)
	course := seedCourse(t, f.db, "Go Basics", 100, instructor.ID)
	seedCoupon(t, f.db, &model.Coupon{
		Code: "ONEUSE", DiscountType: model.DiscountFixed, DiscountValue: 10,
		MaxUses: 1, UsedCount: 1, // cap already reached by the time of settlement
	})

	result, err := f.svc.CreateSession(context.Background(), f.buyer, []LineItem{lineItem(course)}, "ONEUSE", 10)
	require.NoError(t, err)
	f.provider.MarkPaid(result.SessionID, 10)

	_, err = f.svc.Reconcile(context.Background(), result.SessionID, f.buyer)
	require.ErrorIs(t, err, ErrCouponUsageLimit)

	// The transaction rolled everything back: no payment, order or credit.
	var payments, orders int64
	f.db.Model(&model.Payment{}).Count(&payments)
	f.db.Model(&model.Order{}).Count(&orders)
	assert.Zero(t, payments)
	assert.Zero(t, orders)

	var gotInstructor model.User
	require.NoError(t, f.db.First(&gotInstructor, instructor.ID).Error)
	assert.Zero(t, gotInstructor.AvailableBalance)
}
