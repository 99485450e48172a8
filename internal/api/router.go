package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/dfe0990ngc/pcds-student-portal/internal/auth"
	"github.com/dfe0990ngc/pcds-student-portal/internal/handlers"
	"github.com/dfe0990ngc/pcds-student-portal/internal/middleware"
	"github.com/dfe0990ngc/pcds-student-portal/internal/ratelimit"
	"github.com/dfe0990ngc/pcds-student-portal/internal/services"
	"github.com/dfe0990ngc/pcds-student-portal/pkg/mail"
)

// Deps carries the collaborators the router wires into handlers.
type Deps struct {
	DB          *gorm.DB
	Tokens      *iauth.TokenService
	Limiter     *ratelimit.Limiter
	Mailer      *mail.Dispatcher
	AuthConfig  services.AuthConfig
	CORSOrigin  string
	TrustedCIDR []string
}

// NewRouter builds the Gin engine with the explicit route table and the full
// middleware chain.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter must be provided")
	}
	if deps.Mailer == nil {
		return nil, fmt.Errorf("mail dispatcher must be provided")
	}

	authService, err := services.NewAuthService(deps.DB, deps.Tokens, deps.Limiter, deps.Mailer, deps.AuthConfig)
	if err != nil {
		return nil, err
	}
	studentService, err := services.NewStudentService(deps.DB)
	if err != nil {
		return nil, err
	}
	maintenanceService, err := services.NewMaintenanceService(deps.DB, deps.Limiter, deps.AuthConfig.Clock)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if len(deps.TrustedCIDR) > 0 {
		if err := r.SetTrustedProxies(deps.TrustedCIDR); err != nil {
			return nil, err
		}
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.CORSOrigin))

	r.NoRoute(middleware.NotFoundHandler)

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(authService)
	studentHandler := handlers.NewStudentHandler(studentService)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenanceService)

	requireAuth := middleware.Auth(deps.Tokens)

	// Maintenance
	r.GET("/api/clear-rate-limit-cache", maintenanceHandler.ClearRateLimitCache)
	r.GET("/api/clear-expired-tokens", maintenanceHandler.ClearExpiredTokens)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/resend-forgot-password", authHandler.ResendForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-email-verification", authHandler.ResendEmailVerification)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Protected routes
	auth.POST("/logout", requireAuth, authHandler.Logout)

	student := r.Group("/api/student")
	student.Use(requireAuth)
	{
		student.GET("/profile", studentHandler.Profile)
		student.GET("/grades", studentHandler.Grades)
		student.GET("/account", studentHandler.Account)
	}

	return r, nil
}
