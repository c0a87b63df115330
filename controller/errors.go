package controller

import (
	"errors"
	"net/http"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Server-side failures are
// logged and reported with the generic message.
func respondError(ctx *gin.Context, err error, message string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logrus.WithField("component", "http").WithError(err).Error(message)
		ctx.JSON(status, models.ErrorResponse{Error: message + ": " + err.Error()})
		return
	}
	ctx.JSON(status, models.ErrorResponse{Error: err.Error()})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
}
