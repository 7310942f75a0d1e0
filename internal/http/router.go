package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/session"
)

// Deps is everything the HTTP surface needs. Prom and Gatherer may be nil.
type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	JWT      *auth.Manager
	Accounts *account.Service
	Sessions *session.Provider
	MailJobs handlers.AdminJobsRepo
	Checks   []handlers.Check
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	// ServiceName enables otelgin spans when set.
	ServiceName string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Checks...)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	limiter := middlewares.NewRateLimiter(20, time.Minute)

	// public auth
	authHandler := handlers.NewAuthHandler(d.Sessions, d.Cfg)
	authGroup := r.Group("/auth")
	authGroup.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/password/forgot", authHandler.ForgotPassword)
		authGroup.POST("/password/reset", authHandler.ResetPassword)
		authGroup.GET("/email/confirm", authHandler.ConfirmEmail)
		authGroup.POST("/email/confirm", authHandler.ConfirmEmail)
		authGroup.POST("/invitations/accept", authHandler.AcceptInvitation)
	}

	// guarded screens
	screens := handlers.NewScreensHandler(d.Sessions)
	adminHandler := handlers.NewAdminHandler(d.Accounts, d.Sessions)

	signedIn := middlewares.Guard(d.Accounts, account.Guard{}, d.Prom)
	adminOnly := middlewares.Guard(d.Accounts, account.RequireRole(profile.RoleAdmin), d.Prom)

	r.GET("/dashboard", authMW.LoadSession(), signedIn, screens.Dashboard)
	r.GET("/profile", authMW.LoadSession(), signedIn, screens.Profile)
	r.GET("/settings", authMW.LoadSession(), signedIn, screens.Settings)
	r.GET("/admin", authMW.LoadSession(), adminOnly, adminHandler.ListUsers)

	// api
	api := r.Group("/api")
	api.Use(authMW.RequireAuth())
	api.Use(limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	{
		profileHandler := handlers.NewProfileHandler(d.Accounts)
		api.PUT("/profile", profileHandler.Update)

		settings := handlers.NewSettingsHandler(d.Sessions, d.Cfg)
		api.PUT("/settings/password", settings.UpdatePassword)
		api.PUT("/settings/email", settings.ChangeEmail)
		api.DELETE("/settings/account", settings.CloseAccount)

		events := handlers.NewSessionEventsHandler(d.Sessions, d.Cfg.AllowedOrigins, d.Log)
		api.GET("/session/events", events.Stream)
	}

	admin := api.Group("/admin")
	admin.Use(middlewares.RequireAdmin(d.Accounts, d.Prom))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/role", adminHandler.ChangeRole)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.POST("/users/:id/password-reset", adminHandler.SendPasswordReset)
		admin.POST("/invitations", adminHandler.Invite)

		if d.MailJobs != nil {
			mailJobs := handlers.NewAdminJobsHandler(d.MailJobs)
			admin.GET("/mail-jobs", mailJobs.List)
			admin.GET("/mail-jobs/:id", mailJobs.GetByID)
		}
	}

	return r
}
