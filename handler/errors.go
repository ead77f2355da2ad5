package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
)

// respondError writes err as {"error","code","kind"}. Errors outside the
// domain taxonomy are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(status, gin.H{
			"error": "Internal server error",
			"code":  apperr.CodeInternal,
			"kind":  apperr.KindInternal,
		})
		return
	}

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err, "code", appErr.Code)
	}

	body := gin.H{
		"error": appErr.Message,
		"code":  appErr.Code,
		"kind":  appErr.Kind,
	}
	if len(appErr.Metadata) > 0 {
		body["details"] = appErr.Metadata
	}
	c.JSON(status, body)
}

// badRequest is used when the body cannot be decoded at all.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
		"code":  "INVALID_REQUEST",
		"kind":  apperr.KindValidation,
	})
}
