package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/config"
	"github.com/kodexa-lms/commerce-api/database"
	"github.com/kodexa-lms/commerce-api/handlers"
	admin_handlers "github.com/kodexa-lms/commerce-api/handlers/admin"
	cart_handlers "github.com/kodexa-lms/commerce-api/handlers/cart"
	checkout_handlers "github.com/kodexa-lms/commerce-api/handlers/checkout"
	coupon_handlers "github.com/kodexa-lms/commerce-api/handlers/coupon"
	enrollment_handlers "github.com/kodexa-lms/commerce-api/handlers/enrollment"
	instructor_handlers "github.com/kodexa-lms/commerce-api/handlers/instructor"
	order_handlers "github.com/kodexa-lms/commerce-api/handlers/order"
	"github.com/kodexa-lms/commerce-api/model"
	"github.com/kodexa-lms/commerce-api/services"
	"github.com/kodexa-lms/commerce-api/services/payment"
	"github.com/kodexa-lms/commerce-api/utils/auth"
	"github.com/kodexa-lms/commerce-api/utils/cache"
	"github.com/kodexa-lms/commerce-api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires the full /api/v1 surface: cart, coupons, the two-phase
// checkout, orders, enrollments and the instructor/admin dashboards.
func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "kodexa-identity"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs the coupon-apply limiter; the API stays up without it.
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Coupon rate limiting will be disabled.", err)
	}
	var couponLimiter *middleware.CouponApplyLimiter
	if redisCache != nil {
		couponLimiter = middleware.NewCouponApplyLimiter(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Payment provider: Stripe in real deployments, the in-memory fake when
	// no key is configured (local development).
	var provider payment.Provider
	if env.STRIPE_SECRET_KEY != "" {
		provider = payment.NewStripeClient(env.STRIPE_SECRET_KEY)
	} else {
		log.Println("Warning: STRIPE_SECRET_KEY is not set, using in-memory payment provider")
		provider = payment.NewFakeProvider()
	}

	// Services
	cartService := services.NewCartService(db)
	couponService := services.NewCouponService(db)
	emailService := services.NewEmailService()
	checkoutService := services.NewCheckoutService(db, provider, couponService, emailService, env)
	settlementService := services.NewSettlementService(db)
	withdrawalService := services.NewWithdrawalService(db)
	enrollmentService := services.NewEnrollmentService(db)
	statsService := services.NewStatsService(db)

	// Handlers
	cartHandler := cart_handlers.NewCartHandler(db, cartService)
	couponHandler := coupon_handlers.NewCouponHandler(db, couponService, cartService)
	checkoutHandler := checkout_handlers.NewCheckoutHandler(db, checkoutService, cartService, couponService)
	orderHandler := order_handlers.NewOrderHandler(db)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(db, enrollmentService)
	instructorHandler := instructor_handlers.NewInstructorHandler(db, statsService, withdrawalService)
	adminHandler := admin_handlers.NewAdminHandler(db, statsService, settlementService, withdrawalService, enrollmentService, emailService)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Cart routes. Optional auth: anonymous visitors carry a guest token.
	cart := api.Group("/cart", authMiddleware.Optional())
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/", cartHandler.AddToCart)
	cart.Delete("/:id", cartHandler.RemoveItem)
	cart.Delete("/", cartHandler.ClearCart)
	cart.Post("/merge", authMiddleware.Required(), cartHandler.MergeCart)

	// Coupon routes
	coupons := api.Group("/coupons")
	if couponLimiter != nil {
		coupons.Post("/apply", authMiddleware.Required(), couponLimiter.Limit(), couponHandler.ApplyCoupon)
	} else {
		coupons.Post("/apply", authMiddleware.Required(), couponHandler.ApplyCoupon)
	}
	couponMgmt := authMiddleware.RequireRole(model.RoleInstructor, model.RoleAdmin)
	coupons.Get("/", authMiddleware.Required(), couponMgmt, couponHandler.ListCoupons)
	coupons.Post("/", authMiddleware.Required(), couponMgmt, couponHandler.CreateCoupon)
	coupons.Put("/:id", authMiddleware.Required(), couponMgmt, couponHandler.UpdateCoupon)
	coupons.Delete("/:id", authMiddleware.Required(), couponMgmt, couponHandler.DeleteCoupon)

	// Checkout routes (two-phase: open session, then confirm)
	checkout := api.Group("/checkout", authMiddleware.Required())
	checkout.Post("/", checkoutHandler.CreateSession)
	checkout.Post("/confirm", checkoutHandler.Confirm)

	// Order routes
	orders := api.Group("/orders", authMiddleware.Required())
	orders.Get("/my", orderHandler.MyOrders)
	orders.Get("/:id", orderHandler.GetOrder)

	// Enrollment routes
	enrollments := api.Group("/enrollments", authMiddleware.Required())
	enrollments.Get("/my", enrollmentHandler.MyEnrollments)
	enrollments.Put("/:course_id/progress", enrollmentHandler.UpdateProgress)
	api.Post("/courses/:id/enroll", authMiddleware.Required(), enrollmentHandler.EnrollFree)

	// Instructor dashboard
	instructor := api.Group("/instructor", authMiddleware.Required(),
		authMiddleware.RequireRole(model.RoleInstructor, model.RoleAdmin))
	instructor.Get("/stats", instructorHandler.Stats)
	instructor.Get("/withdrawals", instructorHandler.ListWithdrawals)
	instructor.Post("/withdrawals", instructorHandler.RequestWithdrawal)

	// Admin dashboard
	admin := api.Group("/admin", authMiddleware.Required(), authMiddleware.RequireAdmin())
	admin.Get("/stats", adminHandler.Stats)
	admin.Get("/orders", adminHandler.ListOrders)
	admin.Post("/orders/:id/refund", adminHandler.RefundOrder)
	admin.Get("/withdrawals", adminHandler.ListWithdrawals)
	admin.Put("/withdrawals/:id", adminHandler.ProcessWithdrawal)
	admin.Post("/enrollments", adminHandler.GrantEnrollment)
}
