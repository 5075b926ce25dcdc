package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/naano/linktrack/cmd/middleware"
	"github.com/naano/linktrack/internal/service"
)

type Routers struct {
	Service service.Service
	Log     *zerolog.Logger
}

func NewRouters(r *Routers) *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery())
	app.Use(middleware.LoggingMiddleware(r.Log))

	app.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public tracking endpoints, hash-addressed.
	app.GET("/c/:hash", r.Service.Redirect)
	app.HEAD("/c/:hash", r.Service.Preview)

	apiGroup := app.Group("/v1")

	apiGroup.POST("/links", r.Service.CreateLink)
	apiGroup.GET("/analytics/:hash", r.Service.ShowAnalytics)

	return app
}
