package router

import (
	"github.com/gin-gonic/gin"

	"cadence.app/server/internal/http/handler/webhook"
)

func SetupRoutes(router *gin.Engine, activities *webhook.ActivityHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/messages", activities.HandleActivity)
	}
}
