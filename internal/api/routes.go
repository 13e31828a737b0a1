package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.Use(cors.Default())

	api := router.Group("/api")
	{
		api.GET("/health", handler.GetHealth)
		api.GET("/stats", handler.GetStats)
		api.GET("/recent", handler.GetRecent)
		api.POST("/clear", handler.ClearListings)
	}
}
