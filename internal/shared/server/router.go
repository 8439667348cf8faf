package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/shared/config"
	"presale-backend/internal/shared/server/middleware"
	"presale-backend/internal/shared/server/respond"
)

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// NewRouter constructs the gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, handlers ...RouteRegistrar) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
