// Package router registers the HTTP routes and binds them to their
// middleware chains.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/skagit-alpine-club/registration-server/internal/config"
	"github.com/skagit-alpine-club/registration-server/internal/handler"
	"github.com/skagit-alpine-club/registration-server/internal/middleware"
)

// RegisterRoutes registers routes that need neither authentication nor
// any other middleware: the health check and the webhook endpoint (the
// webhook authenticates by signature, not by session).
func RegisterRoutes(e *echo.Echo, webhooks *handler.WebhookHandler) {
	e.GET("/healthz", handler.Health)
	e.POST("/v1/payments/webhook", webhooks.Receive)
}

// RegisterAuth registers the auth endpoints.  Register, login, refresh
// and logout live under /v1/auth without a session; /v1/me requires
// one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	g.POST("/confirm-email", a.ConfirmEmail)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalog, cached in Redis
// and rate limited.  Guests browse course types, offerings and gear
// lists without an account.
func RegisterPublic(e *echo.Echo, catalog *handler.CatalogHandler, rdb *redis.Client) {
	g := e.Group("/v1/catalog")
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	g.GET("/types", catalog.ListTypes)
	g.GET("/types/:id/courses", catalog.ListCoursesForType)
	g.GET("/courses/:id", catalog.GetCourse)
	g.GET("/types/:id/gear", catalog.ListGearForType)
	g.GET("/gear", catalog.ListClubGear)
}

// RegisterMember registers the authenticated member surface: the
// eligibility-annotated catalog, the registration form, the cart,
// checkout, wait lists, enrollment and refunds.
func RegisterMember(e *echo.Echo, jwtSecret string,
	catalog *handler.CatalogHandler,
	forms *handler.RegistrationFormHandler,
	carts *handler.CartHandler,
	checkout *handler.CheckoutHandler,
	waitlists *handler.WaitListHandler,
	enrollment *handler.EnrollmentHandler) {
	g := e.Group("/v1/me")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(handler.RoleMember, handler.RoleInstructor, handler.RoleAdmin))

	g.GET("/catalog", catalog.MyCatalog)

	g.GET("/registration-form", forms.Get)
	g.PUT("/registration-form", forms.Put)

	g.GET("/cart", carts.Get)
	g.POST("/cart/items", carts.AddItem)
	g.DELETE("/cart/items/:id", carts.RemoveItem)

	g.POST("/checkout", checkout.Create)

	g.GET("/waitlists", waitlists.Mine)
	g.GET("/courses/:id/waitlist", waitlists.Entry)
	g.POST("/courses/:id/waitlist", waitlists.Join)
	g.DELETE("/courses/:id/waitlist", waitlists.Leave)

	g.GET("/courses", enrollment.MyCourses)
	g.GET("/purchases", enrollment.MyPurchases)
	g.POST("/purchases/:id/refund", enrollment.Refund)
}

// RegisterInstructor registers the instructor surface.
func RegisterInstructor(e *echo.Echo, jwtSecret string, instructors *handler.InstructorHandler) {
	g := e.Group("/v1/instructor")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(handler.RoleInstructor, handler.RoleAdmin))
	g.GET("/courses", instructors.MyCourses)
	g.GET("/courses/:id/roster", instructors.Roster)
}

// RegisterAdmin registers the administrative surface.
func RegisterAdmin(e *echo.Echo, jwtSecret string, admin *handler.AdminHandler) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(handler.RoleAdmin))

	g.GET("/course-types", admin.ListCourseTypes)
	g.POST("/course-types", admin.CreateCourseType)
	g.PUT("/course-types/:id/requirement", admin.SetRequirement)
	g.PUT("/course-types/:id/visible", admin.SetTypeVisible)
	g.POST("/gear", admin.AddGear)

	g.POST("/courses", admin.CreateCourse)
	g.POST("/courses/:id/instructors", admin.AddInstructor)
	g.DELETE("/courses/:id/instructors/:user_id", admin.RemoveInstructor)
	g.POST("/courses/:id/backfill", admin.Backfill)

	g.GET("/settings", admin.GetSettings)
	g.POST("/settings", admin.CreateSettings)
	g.PUT("/settings", admin.UpdateSettings)
	g.POST("/early-signups", admin.AddEarlySignup)

	g.POST("/discounts", admin.CreateDiscount)
	g.DELETE("/discounts/:id", admin.DeleteDiscount)

	g.PUT("/users/:id/role", admin.SetRole)
}
