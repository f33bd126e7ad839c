package routes

import (
	"time"

	"village-registry/internal/adapters/http/handlers"
	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Dependencies are the wired services the routes expose
type Dependencies struct {
	DB        *gorm.DB
	Config    *config.Config
	Auth      *services.AuthService
	Users     *services.UserService
	Gate      *services.SecurityGate
	Residents *services.ProtectedResidents
	Documents *services.ProtectedDocuments
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps *Dependencies) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Config.AppMode)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Config)
	userHandler := handlers.NewUserHandler(deps.Users)
	residentHandler := handlers.NewResidentHandler(deps.Residents)
	documentHandler := handlers.NewDocumentHandler(deps.Documents)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	authRequired := middleware.AuthMiddleware(deps.Auth)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/logout", authRequired, authHandler.Logout)
	authRoutes.Get("/me", authRequired, authHandler.Me)

	// Resident routes. Authorization happens per operation behind the gate.
	residentRoutes := apiV1.Group("/residents", authRequired, middleware.NoStore())
	residentRoutes.Post("/", residentHandler.CreateResident)
	residentRoutes.Get("/", residentHandler.ListResidents)
	residentRoutes.Get("/:id", residentHandler.GetResident)
	residentRoutes.Delete("/:id", residentHandler.DeleteResident)
	residentRoutes.Put("/:id/address", residentHandler.Relocate)
	residentRoutes.Post("/:id/qualifications", residentHandler.AddQualification)
	residentRoutes.Post("/:id/dependents", residentHandler.AddDependent)
	residentRoutes.Get("/:id/documents", documentHandler.ListResidentDocuments)

	// Document routes
	documentRoutes := apiV1.Group("/documents", authRequired, middleware.NoStore())
	documentRoutes.Post("/proof-of-address", documentHandler.IssueProofOfAddress)
	documentRoutes.Post("/verify", middleware.StrictRateLimiter(), documentHandler.Verify)
	documentRoutes.Post("/verify-code", middleware.StrictRateLimiter(), documentHandler.VerifyCode)
	documentRoutes.Get("/:reference", documentHandler.GetDocument)

	// User administration
	userRoutes := apiV1.Group("/users", authRequired)
	userRoutes.Post("/", middleware.RequirePermission(deps.Gate, domain.ComponentUser, domain.ActionCreate), userHandler.CreateUser)
	userRoutes.Get("/", middleware.RequirePermission(deps.Gate, domain.ComponentUser, domain.ActionView), userHandler.ListUsers)
	userRoutes.Post("/:id/roles", middleware.RequirePermission(deps.Gate, domain.ComponentRole, domain.ActionUpdate), userHandler.AssignRole)
	userRoutes.Delete("/:id/roles/:role", middleware.RequirePermission(deps.Gate, domain.ComponentRole, domain.ActionUpdate), userHandler.RevokeRole)

	// Role administration
	roleRoutes := apiV1.Group("/roles", authRequired)
	roleRoutes.Get("/", middleware.RequirePermission(deps.Gate, domain.ComponentRole, domain.ActionView), middleware.PrivateCache(5*time.Minute), userHandler.ListRoles)
	roleRoutes.Delete("/:id", middleware.RequirePermission(deps.Gate, domain.ComponentRole, domain.ActionDelete), userHandler.DeleteRole)
}
