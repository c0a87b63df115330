package controller

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the controllers into a gin engine.
func NewRouter(opinions *OpinionController, chat *ChatController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Break-Bias opinion API",
			"version": "1.0.0",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents", opinions.UploadDocument)
		apiV1.GET("/documents", opinions.ListDocuments)
		apiV1.GET("/documents/:id", opinions.GetSource)
		apiV1.DELETE("/documents/:id", opinions.DeleteSource)

		apiV1.POST("/comments/topic", opinions.CollectTopic)
		apiV1.POST("/comments/video", opinions.CollectVideo)
		apiV1.GET("/topics", opinions.ListTopics)

		apiV1.POST("/opinions/analyze", opinions.AnalyzeOpinion)

		apiV1.GET("/sources", opinions.ListSources)
		apiV1.GET("/sources/:id", opinions.GetSource)
		apiV1.DELETE("/sources/:id", opinions.DeleteSource)
		apiV1.POST("/reindex", opinions.Reindex)
		apiV1.GET("/stats", opinions.Stats)

		if chat != nil {
			apiV1.POST("/chat", chat.SendMessage)
			apiV1.GET("/chat/:id", chat.History)
			apiV1.DELETE("/chat/:id", chat.Clear)
		}
	}
	return router
}
