// Package server assembles the gin router for the serving application.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/stayml/bookingcast/internal/handlers"
)

type RouterConfig struct {
	HealthHandler  *handlers.HealthHandler
	PredictHandler *handlers.PredictHandler
	ModelHandler   *handlers.ModelHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("bookingcast"))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:8080",
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	router.GET("/", handlers.FormPage)
	router.POST("/predict", cfg.PredictHandler.Predict)

	api := router.Group("/api")
	{
		api.GET("/model", cfg.ModelHandler.GetModel)
		api.GET("/runs", cfg.ModelHandler.ListRuns)
		api.POST("/model/reload", cfg.ModelHandler.Reload)
		api.POST("/model/promote", cfg.ModelHandler.Promote)
	}

	return router
}
