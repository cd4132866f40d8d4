package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"research-chatbot/internal/bootstrap"
	"research-chatbot/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatHandler := handler.NewChatHandler(app.ChatService)
	ingestHandler := handler.NewIngestHandler(app.IngestService)
	evalHandler := handler.NewEvalHandler(app.EvalService)

	v1 := router.Group("/api/v1")

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions/:id/stats", chatHandler.GetStats)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.Chat)
	chatGroup.GET("/history", chatHandler.GetHistory)

	docGroup := v1.Group("/documents")
	docGroup.POST("", ingestHandler.IngestText)
	docGroup.POST("/pdf", ingestHandler.IngestPDF)
	docGroup.POST("/chunks", ingestHandler.IngestChunks)
	docGroup.GET("", ingestHandler.ListDocuments)
	docGroup.DELETE("/:id", ingestHandler.DeleteDocument)

	evalGroup := v1.Group("/eval")
	evalGroup.POST("/run", evalHandler.Run)
	evalGroup.GET("/results", evalHandler.ListResults)

	return router
}
