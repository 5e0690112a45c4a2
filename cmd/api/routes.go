package main

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/homeswift/internal/admin"
	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/auth"
	"github.com/sudo-init-do/homeswift/internal/booking"
	"github.com/sudo-init-do/homeswift/internal/config"
	"github.com/sudo-init-do/homeswift/internal/marketplace"
	mware "github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/user"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type app struct {
	cfg      *config.Config
	store    store.Store
	bookings *booking.Service
	catalog  *pricing.Catalog
	notifier alerts.Notifier
	tokens   *utils.Tokens
	logger   *slog.Logger
}

func newServer(a app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = utils.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			a.logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := a.store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	jwt := mware.JWT(a.tokens)
	authH := auth.NewHandler(a.store, a.tokens, a.notifier, a.logger, auth.Config{
		AppURL:          a.cfg.AppURL,
		BootstrapSecret: a.cfg.AdminBootstrapSecret,
	})
	market := marketplace.NewHandler(a.bookings, a.catalog, a.store, a.logger)
	adminH := admin.NewHandler(a.bookings, a.store, a.store, a.store, a.logger)
	profiles := user.NewHandler(a.store, a.store)

	// per-IP limit
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", authH.Signup)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/password/request", authH.RequestPasswordReset)
	authGroup.POST("/password/reset", authH.ResetPassword)
	authGroup.POST("/bootstrap-admin", authH.BootstrapAdmin)
	authGroup.GET("/me", authH.Me, jwt)

	e.GET("/pricing", market.GetPricing)
	e.POST("/pricing/quote", market.QuotePrice)
	e.POST("/service-requests", market.CreateServiceRequest, mware.OptionalJWT(a.tokens))
	e.POST("/complaints", market.CreateComplaint)
	e.GET("/providers/:id", profiles.GetProviderProfile)

	e.GET("/service-requests/:id", market.GetServiceRequest, jwt)
	e.GET("/me/service-requests", market.MyServiceRequests, jwt, mware.RequireRoles(model.RoleCustomer, model.RoleAdmin))
	e.PATCH("/me/profile", profiles.UpdateProfile, jwt)

	e.GET("/provider/jobs", market.ProviderJobs, jwt, mware.RequireProvider)
	e.POST("/service-requests/:id/show-interest", market.ShowInterest, jwt, mware.RequireProvider)
	e.POST("/service-requests/:id/accept", market.AcceptBooking, jwt, mware.RequireProvider)

	adm := e.Group("/admin")
	adm.Use(jwt)
	adm.Use(mware.AdminGuard)
	adm.GET("/stats", adminH.Stats)
	adm.GET("/service-requests", adminH.ListServiceRequests)
	adm.PATCH("/service-requests/:id", adminH.UpdateServiceRequest)
	adm.POST("/service-requests/:id/broadcast", adminH.Broadcast)
	adm.POST("/service-requests/:id/assign-provider", adminH.AssignProvider)
	adm.DELETE("/service-requests/:id/assign-provider/:providerId", adminH.RejectInterest)
	adm.GET("/providers", adminH.ListProviders)
	adm.POST("/providers", adminH.CreateProvider)
	adm.GET("/users", adminH.ListUsers)
	adm.PATCH("/users/:id", adminH.UpdateUser)
	adm.DELETE("/users/:id", adminH.DeleteUser)
	adm.GET("/complaints", adminH.ListComplaints)
	adm.PATCH("/complaints/:id", adminH.UpdateComplaint)

	return e
}
