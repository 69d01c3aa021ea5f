package services

import (
	"testing"
	"time"

	"github.com/kodexa-lms/commerce-api/database"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema. A single
// connection keeps the :memory: database alive and serializes access, which
// is what the production unique indexes assume from Postgres anyway.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         email,
		Role:         role,
		Status:       "active",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedInstructor(t *testing.T, db *gorm.DB, email string, commissionRate float64) *model.User {
	t.Helper()
	user := &model.User{
		Email:          email,
		PasswordHash:   "x",
		Name:           email,
		Role:           model.RoleInstructor,
		Status:         "active",
		CommissionRate: commissionRate,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedCourse(t *testing.T, db *gorm.DB, title string, price float64, instructorID uint) *model.Course {
	t.Helper()
	course := &model.Course{
		Title:        title,
		Slug:         title + "-slug",
		Price:        price,
		InstructorID: instructorID,
		Status:       "active",
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon *model.Coupon) *model.Coupon {
	t.Helper()
	if coupon.ValidFrom.IsZero() {
		coupon.ValidFrom = time.Now().Add(-time.Hour)
	}
	if coupon.ValidUntil.IsZero() {
		coupon.ValidUntil = time.Now().Add(24 * time.Hour)
	}
	coupon.Active = true
	require.NoError(t, db.Create(coupon).Error)
	return coupon
}
