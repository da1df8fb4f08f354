package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Spok95/iteach/internal/domain/apperr"
	"github.com/Spok95/iteach/internal/domain/exercises"
	"github.com/Spok95/iteach/internal/domain/subscriptions"
	"github.com/Spok95/iteach/internal/infra/generator"
	"github.com/Spok95/iteach/internal/infra/sheets"
	"github.com/gin-gonic/gin"
)

const generationFailed = "Impossible de générer l'exercice. Veuillez réessayer plus tard."

// writeError переводит доменную ошибку в HTTP-ответ. Подробности
// внутренних ошибок уходят только в лог.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, subscriptions.ErrQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":      "Quota atteint pour votre abonnement",
			"code":       "quota_exceeded",
			"upgradeUrl": "/pricing",
		})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, exercises.ErrProfileIncomplete):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "profile_incomplete"})
	case errors.Is(err, subscriptions.ErrInvalidPlan),
		errors.Is(err, subscriptions.ErrInvalidAction),
		errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, sheets.ErrNoRows),
		errors.Is(err, sheets.ErrInvalidFile),
		errors.Is(err, sheets.ErrMissingColumn):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, generator.ErrUpstream), errors.Is(err, generator.ErrEmpty):
		log.Error("generation failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": generationFailed})
	case errors.Is(err, apperr.ErrStorageUnavailable):
		log.Error("storage unavailable", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
