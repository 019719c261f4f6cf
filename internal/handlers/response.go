package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stayml/bookingcast/internal/platform/apperr"
)

type ErrorEnvelope struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func RespondError(c *gin.Context, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error:  msg,
		Status: "error",
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusForError maps error kinds at the single HTTP boundary: request
// validation problems are client errors, everything else is a 500.
func statusForError(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindModel, apperr.KindData:
		return http.StatusBadRequest
	case apperr.KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
