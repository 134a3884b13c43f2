package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/signup-backend/internal/logger"
	"github.com/ignatzorin/signup-backend/internal/pkg/apperror"
)

// respondError переводит ошибку сервиса в HTTP ответ.
// Типизированные бизнес-исходы отдаются с их статусом и сообщением,
// всё остальное маскируется как внутренняя ошибка.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
		return
	}

	if logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("handlers: внутренняя ошибка запроса")
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
}
