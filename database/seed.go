package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedInstructors(); err != nil {
		return fmt.Errorf("failed to seed instructors: %w", err)
	}

	if err := s.SeedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	if err := s.SeedCoupons(); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleAdmin,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedInstructors creates sample instructors with different commission
// arrangements. A zero CommissionRate means the platform default applies.
func (s *Seeder) SeedInstructors() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleInstructor).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Instructors already exist, skipping...")
		return nil
	}

	passwordHash, err := auth.HashPassword("changeme123")
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	instructors := []model.User{
		{
			Email:        "priya.sharma@kodexa.dev",
			PasswordHash: passwordHash,
			Name:         "Priya Sharma",
			Role:         model.RoleInstructor,
			// Platform default commission
		},
		{
			Email:          "arjun.mehta@kodexa.dev",
			PasswordHash:   passwordHash,
			Name:           "Arjun Mehta",
			Role:           model.RoleInstructor,
			CommissionRate: 20, // negotiated rate
		},
		{
			Email:          "sara.khan@kodexa.dev",
			PasswordHash:   passwordHash,
			Name:           "Sara Khan",
			Role:           model.RoleInstructor,
			CommissionRate: 40,
		},
	}

	if err := s.db.Create(&instructors).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d instructors\n", len(instructors))
	return nil
}

// SeedCategories creates the catalog categories
func (s *Seeder) SeedCategories() error {
	var count int64
	if err := s.db.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Categories already exist, skipping...")
		return nil
	}

	categories := []model.Category{
		{Name: "Web Development", Slug: "web-development"},
		{Name: "Data Science", Slug: "data-science"},
		{Name: "Mobile Development", Slug: "mobile-development"},
		{Name: "DevOps & Cloud", Slug: "devops-cloud"},
		{Name: "Design", Slug: "design"},
	}

	if err := s.db.Create(&categories).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d categories\n", len(categories))
	return nil
}

// SeedCourses creates sample courses across the seeded instructors
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	var instructors []model.User
	if err := s.db.Where("role = ?", model.RoleInstructor).Order("id ASC").Find(&instructors).Error; err != nil {
		return err
	}
	if len(instructors) == 0 {
		return fmt.Errorf("no instructors found, seed instructors first")
	}

	var categories []model.Category
	if err := s.db.Order("id ASC").Find(&categories).Error; err != nil {
		return err
	}
	if len(categories) == 0 {
		return fmt.Errorf("no categories found, seed categories first")
	}

	catID := func(i int) *uint { return &categories[i%len(categories)].ID }
	instID := func(i int) uint { return instructors[i%len(instructors)].ID }

	courses := []model.Course{
		{
			Title:        "The Complete Go Backend Bootcamp",
			Slug:         "complete-go-backend-bootcamp",
			Description:  "REST APIs, databases and deployment with Go",
			Price:        99.99,
			InstructorID: instID(0),
			CategoryID:   catID(0),
			Status:       "active",
		},
		{
			Title:         "React from Zero to Production",
			Slug:          "react-zero-to-production",
			Description:   "Modern React with hooks, routing and testing",
			Price:         79.99,
			DiscountPrice: 49.99,
			InstructorID:  instID(0),
			CategoryID:    catID(0),
			Status:        "active",
		},
		{
			Title:        "Practical Machine Learning with Python",
			Slug:         "practical-ml-python",
			Description:  "Hands-on ML: pandas, scikit-learn and deployment",
			Price:        129.99,
			InstructorID: instID(1),
			CategoryID:   catID(1),
			Status:       "active",
		},
		{
			Title:        "Kubernetes for Developers",
			Slug:         "kubernetes-for-developers",
			Description:  "Containers, deployments and operations",
			Price:        89.99,
			InstructorID: instID(1),
			CategoryID:   catID(3),
			Status:       "active",
		},
		{
			Title:        "Flutter Mobile Apps Masterclass",
			Slug:         "flutter-mobile-masterclass",
			Description:  "Cross-platform apps with Flutter and Dart",
			Price:        69.99,
			InstructorID: instID(2),
			CategoryID:   catID(2),
			Status:       "active",
		},
		{
			Title:        "Intro to Programming",
			Slug:         "intro-to-programming",
			Description:  "A free starter course for absolute beginners",
			Price:        0,
			InstructorID: instID(2),
			CategoryID:   catID(0),
			Status:       "active",
		},
	}

	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d courses\n", len(courses))
	return nil
}

// SeedCoupons creates sample platform and instructor coupons
func (s *Seeder) SeedCoupons() error {
	var count int64
	if err := s.db.Model(&model.Coupon{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Coupons already exist, skipping...")
		return nil
	}

	var instructor model.User
	if err := s.db.Where("role = ?", model.RoleInstructor).Order("id ASC").First(&instructor).Error; err != nil {
		return err
	}

	var course model.Course
	if err := s.db.Where("instructor_id = ?", instructor.ID).Order("id ASC").First(&course).Error; err != nil {
		return err
	}

	now := time.Now()
	coupons := []model.Coupon{
		{
			// Platform-wide launch coupon
			Code:          "WELCOME10",
			DiscountType:  model.DiscountPercentage,
			DiscountValue: 10,
			ValidFrom:     now,
			ValidUntil:    now.AddDate(1, 0, 0),
			Active:        true,
		},
		{
			Code:              "SAVE20",
			DiscountType:      model.DiscountPercentage,
			DiscountValue:     20,
			MaxUses:           100,
			ValidFrom:         now,
			ValidUntil:        now.AddDate(0, 3, 0),
			MinPurchaseAmount: 25,
			Active:            true,
		},
		{
			// Instructor coupon scoped to one course
			Code:          "GOLAUNCH",
			DiscountType:  model.DiscountFixed,
			DiscountValue: 15,
			MaxUses:       50,
			ValidFrom:     now,
			ValidUntil:    now.AddDate(0, 1, 0),
			CourseIDs:     []uint{course.ID},
			InstructorID:  &instructor.ID,
			Active:        true,
		},
	}

	if err := s.db.Create(&coupons).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d coupons\n", len(coupons))
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
