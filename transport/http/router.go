package http

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router
func SetupRouter(handlers *Handlers, widgets *WidgetHandlers) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(Recovery(), RequestLogger(), CORS())
	router.NoMethod(methodNotAllowed)
	router.NoRoute(notFound)

	router.GET("/healthz", handlers.Health)

	// Verification API
	router.POST("/verify", handlers.Verify)
	router.OPTIONS("/verify", handlers.Preflight)
	router.GET("/config", handlers.Config)
	router.OPTIONS("/config", handlers.Preflight)

	// Widget API
	w := router.Group("/widget/sessions")
	{
		w.POST("", widgets.Create)
		w.GET("/:id", widgets.Get)
		w.DELETE("/:id", widgets.Delete)
		w.POST("/:id/check", widgets.Check)
		w.POST("/:id/slider", widgets.Slider)
		w.POST("/:id/click/toggle", widgets.Toggle)
		w.POST("/:id/click/submit", widgets.Submit)
		w.POST("/:id/puzzle/drop", widgets.Drop)
		w.POST("/:id/reset", widgets.Reset)
	}

	return router
}
