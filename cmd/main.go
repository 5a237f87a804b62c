package main

import (
	"volunteer-service/internal/handler"
	"volunteer-service/internal/middleware"
	"volunteer-service/internal/store"
	"volunteer-service/pkg/config"
	"volunteer-service/pkg/database"
	"volunteer-service/pkg/jwtutil"
	"volunteer-service/pkg/logger"
	"volunteer-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting volunteer service...", zap.String("environment", cfg.Server.Env))

	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	users := store.NewUserStore(database.GetDB())
	shifts := store.NewShiftStore(database.GetDB())
	h := handler.New(users, shifts, cfg.Auth)

	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.POST("/admin/bootstrap", h.BootstrapAdmin)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)

	// Shift reads are public
	e.GET("/api/shifts/:id", h.GetShift)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// User self-service
	usersGroup := api.Group("/users")
	usersGroup.GET("/profile", h.GetProfile)
	usersGroup.PATCH("/profile", h.UpdateProfile)
	usersGroup.POST("/change-password", h.ChangePassword)
	usersGroup.DELETE("/profile", h.DeleteAccount)

	// Shift lifecycle
	shiftsGroup := api.Group("/shifts")
	shiftsGroup.POST("/:id/signup", h.SignUpForShift)
	shiftsGroup.POST("/:id/checkin", h.CheckIntoShift)
	shiftsGroup.POST("/:id/drop", h.DropShift)

	// Kiosk check-in
	api.POST("/checkin", h.CheckInToday)

	// Admin routes - role checked against the stored record
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin(users))
	admin.POST("/shifts", h.CreateShift)
	admin.PATCH("/shifts/:id", h.UpdateShift)
	admin.DELETE("/shifts/:id", h.DeleteShift)
	admin.GET("/shifts", h.ListShifts)
	admin.GET("/users", h.ListUsers)
	admin.POST("/admins", h.CreateAdmin)
	admin.POST("/admins/:id/password", h.UpdateAdminPassword)
	admin.POST("/users/:id/promote", h.PromoteUser)
	admin.POST("/users/:id/approve", h.SetApproval)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
