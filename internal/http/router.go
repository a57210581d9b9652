package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Khaos-s/car-pass/internal/config"
	"github.com/Khaos-s/car-pass/internal/http/handler"
	httpmiddleware "github.com/Khaos-s/car-pass/internal/http/middleware"
	"github.com/Khaos-s/car-pass/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API WORKING")
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/verify-email/:token", authHandler.VerifyEmail)
			auth.POST("/resend-verification", authHandler.ResendVerification)

			auth.GET("/me", authMiddleware.ValidateJWT, authHandler.Me)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	return r
}
