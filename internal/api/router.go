package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/app"
	iauth "github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/handlers"
	"github.com/inkpost/inkpost/internal/middleware"
	"github.com/inkpost/inkpost/internal/services"
)

// Services bundles the constructed domain services the router depends on.
type Services struct {
	Users    *services.UserService
	Sessions *iauth.SessionService
	Resets   *services.PasswordResetService
	Posts    *services.PostService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, cfg *app.Config, svc Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc.Users == nil || svc.Sessions == nil || svc.Resets == nil || svc.Posts == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins...))
	r.Use(middleware.CSRF())
	if cfg.Server.RateLimit.Enabled {
		maxRequests := cfg.Server.RateLimit.MaxRequests
		window := cfg.Server.RateLimit.Window
		if maxRequests <= 0 {
			maxRequests = 100
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(maxRequests, window))
	}

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(svc.Sessions)
	api := r.Group("/api")

	registerAuthRoutes(api, requireAuth, authRouteDeps{
		AuthHandler:  handlers.NewAuthHandler(svc.Users, svc.Sessions),
		ResetHandler: handlers.NewPasswordResetHandler(svc.Resets),
	})
	registerPostRoutes(api, requireAuth, handlers.NewPostHandler(svc.Posts))

	return r, nil
}
