package api

import (
	"errors"
	"net/http"

	"apparel-service/internal/apperr"
	"apparel-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors to HTTP statuses. Services raise
// apperr errors at detection and they travel up unchanged; this is the
// only place that knows about status codes.
func respondError(c *gin.Context, err error) {
	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		util.GetLogger().Error("internal error",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{
		"error": domainErr.Message,
		"code":  string(domainErr.Kind),
	}
	if domainErr.Kind == apperr.KindInsufficientStock {
		body["available"] = domainErr.Available
		body["required"] = domainErr.Required
	}

	c.JSON(statusFor(domainErr.Kind), body)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindAlreadyConverted,
		apperr.KindInsufficientStock, apperr.KindCannotDelete:
		return http.StatusConflict
	case apperr.KindInactive:
		return http.StatusUnprocessableEntity
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondBadRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
