package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stayml/bookingcast/internal/serving"
)

type HealthHandler struct {
	predictor *serving.Predictor
}

func NewHealthHandler(predictor *serving.Predictor) *HealthHandler {
	return &HealthHandler{predictor: predictor}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{
		"status":       "ok",
		"model_loaded": h.predictor.Loaded(),
	})
}
